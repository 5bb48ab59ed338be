package searchindex

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// ASS/SSA override blocks such as {\an8} or {\i1}.
var overrideBlock = regexp.MustCompile(`\{\\[^}]*\}`)

// StripMarkup removes inline subtitle markup (HTML-like tags and ASS override
// blocks) and collapses whitespace, leaving the text a viewer would read.
func StripMarkup(text string) string {
	text = overrideBlock.ReplaceAllString(text, "")

	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return strings.Join(strings.Fields(text), " ")
			}
			break
		}
		switch tt {
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "br" {
				sb.WriteByte(' ')
			}
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
