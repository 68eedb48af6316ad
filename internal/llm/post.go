package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/biterate/socialagent/internal/storage"
)

// AIGeneratedTag is appended to every post's hashtags
const AIGeneratedTag = "#AIGenerated"

const (
	// FallbackPost is published when drafting fails
	FallbackPost = "Check out our latest food reviews on BiteRate!"

	// hashtagRoom is reserved at the end of a post for hashtags
	hashtagRoom = 50

	// promptReviews is how many reviews are shown to the model
	promptReviews = 5

	noReviews = "No recent reviews available."
)

const postSystemPrompt = "You are a social media manager for BiteRate, a food review company. " +
	"Create engaging, authentic social media posts that highlight food reviews and company values. " +
	"Return only the post text, nothing else."

const replySystemPrompt = "You are a helpful social media manager for BiteRate. " +
	"Generate friendly, concise replies to comments."

// PostRequest carries everything the model sees when drafting a post
type PostRequest struct {
	CompanyInfo     string
	Reviews         []*storage.Review
	Context         string // retrieved knowledge base passages, may be empty
	Tone            string
	MaxLength       int
	IncludeHashtags bool
	Hashtags        []string
	Guidelines      string
}

// ReplyRequest carries a comment and the post it answers
type ReplyRequest struct {
	OriginalPost string
	Comment      string
	Context      string
}

// GeneratePost drafts a post and applies the length and hashtag rules.
// On failure callers usually publish Fallback(req) instead.
func (c *Client) GeneratePost(ctx context.Context, req PostRequest) (string, error) {
	text, err := c.complete(ctx, postSystemPrompt, PostPrompt(req), c.maxTokens)
	if err != nil {
		return "", err
	}
	return FinalizePost(text, req.MaxLength, req.IncludeHashtags, req.Hashtags), nil
}

// GenerateReply drafts a short answer to a comment
func (c *Client) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	return c.complete(ctx, replySystemPrompt, ReplyPrompt(req), replyMaxTokens)
}

// Fallback is the canned post used when drafting fails
func Fallback(req PostRequest) string {
	if req.IncludeHashtags && len(req.Hashtags) > 0 {
		return FallbackPost + "\n\n" + strings.Join(req.Hashtags, " ")
	}
	return FallbackPost
}

// NormalizeHashtags prefixes each tag with '#', drops blanks and makes sure
// AIGeneratedTag is present.
func NormalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags)+1)
	hasAI := false
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		if tag == AIGeneratedTag {
			hasAI = true
		}
		out = append(out, tag)
	}
	if !hasAI {
		out = append(out, AIGeneratedTag)
	}
	return out
}

// FinalizePost removes hashtag-only lines the model added, shortens the
// text to leave room for hashtags, and appends the hashtags. Lengths are
// counted in characters.
func FinalizePost(text string, maxLength int, includeHashtags bool, hashtags []string) string {
	text = stripHashtagLines(strings.TrimSpace(text))

	runes := []rune(text)
	if len(runes) > maxLength-hashtagRoom {
		keep := max(0, maxLength-hashtagRoom-3)
		text = string(runes[:min(keep, len(runes))]) + "..."
	}

	if !includeHashtags || len(hashtags) == 0 {
		return text
	}

	tags := strings.Join(hashtags, " ")
	length := len([]rune(text))
	if length+len([]rune(tags))+2 <= maxLength {
		return text + "\n\n" + tags
	}
	if remaining := maxLength - length - 1; remaining > 0 {
		tagRunes := []rune(tags)
		return text + " " + string(tagRunes[:min(remaining, len(tagRunes))])
	}
	return text
}

func stripHashtagLines(text string) string {
	if text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isHashtagLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isHashtagLine(line string) bool {
	words := strings.Fields(line)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !strings.HasPrefix(w, "#") {
			return false
		}
	}
	return true
}

// FormatReviews renders up to five reviews for the prompt
func FormatReviews(reviews []*storage.Review) string {
	if len(reviews) == 0 {
		return noReviews
	}

	blocks := make([]string, 0, min(len(reviews), promptReviews))
	for i, r := range reviews {
		if i == promptReviews {
			break
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Review %d:\n", i+1)
		fmt.Fprintf(&b, "Restaurant: %s\n", r.Restaurant)
		if r.Cuisine != "" {
			fmt.Fprintf(&b, "Cuisine: %s\n", r.Cuisine)
		}
		if r.Location != "" {
			fmt.Fprintf(&b, "Location: %s\n", r.Location)
		}
		if r.Rating != nil {
			fmt.Fprintf(&b, "Rating: %s/5\n", strconv.FormatFloat(*r.Rating, 'f', -1, 64))
		}
		if r.Review != "" {
			fmt.Fprintf(&b, "Review: %s\n", r.Review)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// PostPrompt builds the user message for GeneratePost
func PostPrompt(req PostRequest) string {
	var b strings.Builder
	b.WriteString("Generate a social media post for BiteRate, a food review company based on the following information.\n\n")
	b.WriteString("IMPORTANT: Use the specific details from the Company Information and Recent Reviews below to create your post. ")
	b.WriteString("Reference actual restaurants, dishes, locations, and ratings mentioned.\n\n")
	fmt.Fprintf(&b, "Company Information:\n%s\n\n", req.CompanyInfo)
	fmt.Fprintf(&b, "Recent Reviews:\n%s\n\n", FormatReviews(req.Reviews))
	if strings.TrimSpace(req.Context) != "" {
		fmt.Fprintf(&b, "Relevant Context from Knowledge Base:\n%s\n\n", req.Context)
	}
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- Tone: %s\n", req.Tone)
	fmt.Fprintf(&b, "- Maximum length: %d characters\n", req.MaxLength)
	b.WriteString("- Make it engaging and authentic\n")
	b.WriteString("- Focus on food experiences and reviews\n")
	b.WriteString("- Keep it concise and social media friendly\n")
	b.WriteString("- Do NOT include hashtags in your response - they will be added automatically")
	if req.Guidelines != "" {
		fmt.Fprintf(&b, "\n\nPosting Guidelines:\n%s", req.Guidelines)
	}
	b.WriteString("\n\nGenerate the post text now. Use the actual review content above. ")
	b.WriteString("Return only the post text, no explanations or hashtags:")
	return b.String()
}

// ReplyPrompt builds the user message for GenerateReply
func ReplyPrompt(req ReplyRequest) string {
	var b strings.Builder
	b.WriteString("You are a social media manager for BiteRate, a food review company. ")
	b.WriteString("Generate a friendly, helpful reply to a comment on your post.\n\n")
	fmt.Fprintf(&b, "Original Post:\n%s\n\n", req.OriginalPost)
	fmt.Fprintf(&b, "Comment to Reply To:\n%s", req.Comment)
	if strings.TrimSpace(req.Context) != "" {
		fmt.Fprintf(&b, "\n\nRelevant Context from Knowledge Base:\n%s", req.Context)
	}
	b.WriteString("\n\nRequirements:\n")
	b.WriteString("- Be friendly and conversational\n")
	b.WriteString("- Address the comment directly\n")
	b.WriteString("- Keep it concise (under 200 characters)\n")
	b.WriteString("- Sound authentic and human\n")
	b.WriteString("- Do NOT include hashtags\n\n")
	b.WriteString("Generate the reply now:")
	return b.String()
}
