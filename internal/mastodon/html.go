package mastodon

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML converts status HTML to plain text. Paragraphs become blank-line
// separated, <br> becomes a newline and entities are decoded.
func StripHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "p" {
				b.WriteString("\n\n")
			}
		}
	}
}
