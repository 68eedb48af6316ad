package notion

import (
	"strconv"
	"strings"

	"github.com/biterate/socialagent/internal/storage"
)

// UnknownRestaurant names a review whose restaurant could not be determined
const UnknownRestaurant = "Unknown Restaurant"

// Review database property names
const (
	PropRestaurant = "Restaurant"
	PropRating     = "Rating"
	PropReview     = "Review"
	PropCuisine    = "Cuisine"
	PropLocation   = "Location"
)

// ReviewFromEntry reads a review from a database row. Missing or mistyped
// properties leave the matching field empty.
func ReviewFromEntry(e Entry) *storage.Review {
	r := &storage.Review{
		ID:           e.ID,
		NotionPageID: e.ID,
		Restaurant:   UnknownRestaurant,
	}

	if v, ok := e.Properties[PropRestaurant].(TitleValue); ok && strings.TrimSpace(v.Value) != "" {
		r.Restaurant = strings.TrimSpace(v.Value)
	}
	if v, ok := e.Properties[PropRating].(NumberValue); ok {
		rating := v.Value
		r.Rating = &rating
	}
	if v, ok := e.Properties[PropReview].(RichTextValue); ok {
		r.Review = strings.TrimSpace(v.Value)
	}
	if v, ok := e.Properties[PropCuisine].(SelectValue); ok {
		r.Cuisine = v.Name
	}
	if v, ok := e.Properties[PropLocation].(RichTextValue); ok {
		r.Location = strings.TrimSpace(v.Value)
	}
	return r
}

// ParsePageAsReview reads a review out of a free-form page. Lines starting
// with "Location:", "Cuisine:", "Rating:" and "Review:" fill those fields; a
// line mentioning "Restaurant" names the restaurant; everything else is
// review text. Ratings like "4.5/5" keep the number before the slash.
func ParsePageAsReview(pageID, content string) *storage.Review {
	r := &storage.Review{
		ID:           pageID,
		NotionPageID: pageID,
		Restaurant:   UnknownRestaurant,
	}

	lines := strings.Split(content, "\n")
	var text []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Location:"):
			r.Location = strings.TrimSpace(strings.TrimPrefix(line, "Location:"))
		case strings.HasPrefix(line, "Cuisine:"):
			r.Cuisine = strings.TrimSpace(strings.TrimPrefix(line, "Cuisine:"))
		case strings.HasPrefix(line, "Rating:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "Rating:"))
			value, _, _ = strings.Cut(value, "/")
			if rating, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				r.Rating = &rating
			}
		case strings.HasPrefix(line, "Review:"):
			if rest := strings.TrimSpace(strings.TrimPrefix(line, "Review:")); rest != "" {
				text = append(text, rest)
			}
		case strings.Contains(line, "Restaurant"):
			name := strings.TrimSpace(strings.ReplaceAll(line, "Restaurant", ""))
			if name != "" && r.Restaurant == UnknownRestaurant {
				r.Restaurant = name
			}
		default:
			text = append(text, line)
		}
	}

	if len(text) > 0 {
		r.Review = strings.TrimSpace(strings.Join(text, "\n"))
	} else {
		r.Review = strings.TrimSpace(content)
	}

	if r.Restaurant == UnknownRestaurant && len(lines) > 0 {
		first := strings.TrimSpace(lines[0])
		if first != "" && !strings.HasPrefix(first, "Location") && !strings.HasPrefix(first, "Cuisine") {
			name, _, _ := strings.Cut(first, "\u2014")
			name, _, _ = strings.Cut(name, "Restaurant")
			if name = strings.TrimSpace(name); name != "" {
				r.Restaurant = name
			}
		}
	}
	return r
}
