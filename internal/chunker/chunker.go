package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/biterate/socialagent/pkg/types"
)

// Strategy names a chunking policy
type Strategy string

const (
	StrategyFixedChars     Strategy = "fixed_chars"
	StrategyParagraph      Strategy = "paragraph"
	StrategySentence       Strategy = "sentence"
	StrategyMarkdownHeader Strategy = "markdown_header"
)

const (
	// DefaultChunkSize is the fixed-width window in characters
	DefaultChunkSize = 500

	// DefaultChunkOverlap is carried from each fixed-width window into the next
	DefaultChunkOverlap = 50

	// DefaultSentencesPerChunk is the sentence group size
	DefaultSentencesPerChunk = 3

	// trimThreshold is how far into a window a space must be for the
	// window to be cut there instead of mid-word
	trimThreshold = 0.8

	introductionTitle = "Introduction"
)

var (
	// ErrUnknownStrategy is returned for a strategy name outside the recognized set
	ErrUnknownStrategy = errors.New("unknown chunking strategy")
	// ErrInvalidParams is returned for sizes that cannot produce progress
	ErrInvalidParams = errors.New("invalid chunking parameters")
)

var (
	paragraphBreak   = regexp.MustCompile(`\n\s*\n`)
	sentenceBoundary = regexp.MustCompile(`[.!?]+\s+`)
	docTitleLine     = regexp.MustCompile(`(?m)^#[ \t]+(.+)$`)
	sectionStart     = regexp.MustCompile(`(?m)^##[ \t]+`)
	sectionTitleLine = regexp.MustCompile(`(?m)^##[ \t]+(.+)$`)
)

// Params holds the strategy-specific sizes. Zero values take the defaults.
type Params struct {
	ChunkSize         int
	ChunkOverlap      int
	SentencesPerChunk int
}

// DefaultParams returns the sizes used when configuration is silent
func DefaultParams() Params {
	return Params{
		ChunkSize:         DefaultChunkSize,
		ChunkOverlap:      DefaultChunkOverlap,
		SentencesPerChunk: DefaultSentencesPerChunk,
	}
}

func (p Params) withDefaults() Params {
	if p.ChunkSize <= 0 {
		p.ChunkSize = DefaultChunkSize
	}
	if p.ChunkOverlap < 0 {
		p.ChunkOverlap = 0
	}
	if p.SentencesPerChunk <= 0 {
		p.SentencesPerChunk = DefaultSentencesPerChunk
	}
	return p
}

// Validate rejects parameter combinations that cannot advance the window
func (p Params) Validate() error {
	p = p.withDefaults()
	if p.ChunkOverlap >= p.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d",
			ErrInvalidParams, p.ChunkOverlap, p.ChunkSize)
	}
	return nil
}

// ParseStrategy maps a configured name onto a Strategy
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case StrategyFixedChars, StrategyParagraph, StrategySentence, StrategyMarkdownHeader:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Strategies lists the recognized strategy names
func Strategies() []Strategy {
	return []Strategy{StrategyFixedChars, StrategyParagraph, StrategySentence, StrategyMarkdownHeader}
}

// Chunker splits documents with one configured strategy
type Chunker struct {
	strategy Strategy
	params   Params
}

// New creates a Chunker. The strategy name is resolved immediately so a
// misconfigured name fails at startup rather than on first ingestion.
func New(strategy string, params Params) (*Chunker, error) {
	s, err := ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{strategy: s, params: params.withDefaults()}, nil
}

// Strategy returns the configured strategy
func (c *Chunker) Strategy() Strategy {
	return c.strategy
}

// Chunk splits content with the configured strategy
func (c *Chunker) Chunk(content, sourceID string) ([]types.Chunk, error) {
	return Chunk(content, sourceID, c.strategy, c.params)
}

// Chunk splits content into passages using strategy. Blank content yields no
// chunks. For any other content at least one chunk is returned: when the
// strategy keeps nothing, the whole trimmed input becomes a single chunk.
func Chunk(content, sourceID string, strategy Strategy, params Params) ([]types.Chunk, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params = params.withDefaults()

	var pieces []piece
	switch strategy {
	case StrategyFixedChars:
		pieces = byFixedChars(content, params.ChunkSize, params.ChunkOverlap)
	case StrategyParagraph:
		pieces = byParagraph(content)
	case StrategySentence:
		pieces = bySentence(content, params.SentencesPerChunk)
	case StrategyMarkdownHeader:
		pieces = byMarkdownHeader(content, sourceID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	chunks := make([]types.Chunk, 0, len(pieces))
	for _, p := range pieces {
		text := strings.TrimSpace(p.text)
		if text == "" {
			continue
		}
		meta := map[string]any{
			types.MetaSourceID:   sourceID,
			types.MetaChunkIndex: len(chunks),
			types.MetaStrategy:   string(strategy),
		}
		for k, v := range p.meta {
			meta[k] = v
		}
		chunks = append(chunks, types.Chunk{Content: text, SourceID: sourceID, Metadata: meta})
	}

	trimmed := strings.TrimSpace(content)
	if len(chunks) == 0 && trimmed != "" {
		chunks = append(chunks, types.Chunk{
			Content:  trimmed,
			SourceID: sourceID,
			Metadata: map[string]any{
				types.MetaSourceID:   sourceID,
				types.MetaChunkIndex: 0,
				types.MetaStrategy:   string(strategy),
			},
		})
	}

	return chunks, nil
}

// piece is an untrimmed candidate chunk with strategy-specific metadata
type piece struct {
	text string
	meta map[string]any
}

// byFixedChars slides a window of size runes forward by size-overlap.
// Window starts are fixed multiples of the step; trimming only moves a
// window's end, and never to a point before the next window's start, so no
// character falls between two windows. A tail no longer than the overlap is
// folded into the last window.
func byFixedChars(content string, size, overlap int) []piece {
	runes := []rune(content)
	n := len(runes)
	step := size - overlap

	var pieces []piece
	for start := 0; start < n; start += step {
		end := start + size
		if end >= n || n-end <= overlap {
			end = n
		} else if cut := lastSpace(runes[start:end]); cut > int(float64(size)*trimThreshold) && cut >= step {
			// cut >= step keeps the end at or past the next start, so windows stay contiguous
			end = start + cut
		}

		pieces = append(pieces, piece{
			text: string(runes[start:end]),
			meta: map[string]any{types.MetaStartPos: start, types.MetaEndPos: end},
		})

		if end >= n {
			break
		}
	}
	return pieces
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' {
			return i
		}
	}
	return -1
}

func byParagraph(content string) []piece {
	parts := paragraphBreak.Split(content, -1)
	pieces := make([]piece, 0, len(parts))
	for i, para := range parts {
		pieces = append(pieces, piece{
			text: para,
			meta: map[string]any{types.MetaParagraph: i},
		})
	}
	return pieces
}

// SplitSentences splits text after runs of terminator punctuation that are
// followed by whitespace. Terminators stay with their sentence.
func SplitSentences(text string) []string {
	var sentences []string
	prev := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[prev:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		prev = loc[1]
	}
	if s := strings.TrimSpace(text[prev:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func bySentence(content string, perChunk int) []piece {
	sentences := SplitSentences(content)
	pieces := make([]piece, 0, len(sentences)/perChunk+1)
	for i := 0; i < len(sentences); i += perChunk {
		end := min(i+perChunk, len(sentences))
		pieces = append(pieces, piece{
			text: strings.Join(sentences[i:end], " "),
			meta: map[string]any{types.MetaSentenceCount: end - i},
		})
	}
	return pieces
}

func byMarkdownHeader(content, sourceID string) []piece {
	docTitle := sourceID
	if m := docTitleLine.FindStringSubmatch(content); m != nil {
		docTitle = strings.TrimRightFunc(m[1], unicode.IsSpace)
	}

	var sections []string
	prev := 0
	for _, loc := range sectionStart.FindAllStringIndex(content, -1) {
		sections = append(sections, content[prev:loc[0]])
		prev = loc[0]
	}
	sections = append(sections, content[prev:])

	pieces := make([]piece, 0, len(sections))
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		title := introductionTitle
		if m := sectionTitleLine.FindStringSubmatch(section); m != nil {
			title = strings.TrimSpace(m[1])
		}

		pieces = append(pieces, piece{
			text: fmt.Sprintf("[From: %s]\n# %s\n\n%s", sourceID, docTitle, section),
			meta: map[string]any{
				types.MetaSectionTitle: title,
				types.MetaDocTitle:     docTitle,
			},
		})
	}
	return pieces
}
