// Package extract reduces raw HTML to boilerplate-stripped visible text.
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// strippedSelector enumerates the non-content subtrees dropped before
// text extraction. Anchors are removed wholesale to kill menu noise.
const strippedSelector = "script,style,nav,footer,aside,form,s,a"

// minLineRunes is the retention threshold: only lines longer than this
// survive. Short lines are almost always navigation or boilerplate.
const minLineRunes = 30

// Text parses html content, strips non-content markup, and returns the
// visible text as newline-separated lines longer than the retention
// threshold.
func Text(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(strippedSelector).Remove()

	var blocks []string
	for _, root := range doc.Selection.Nodes {
		collectText(root, &blocks)
	}

	kept := make([]string, 0, len(blocks))
	for _, block := range blocks {
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if utf8.RuneCountInString(line) > minLineRunes {
				kept = append(kept, line)
			}
		}
	}
	return strings.Join(kept, "\n"), nil
}

// collectText walks the node tree in document order, appending trimmed
// text nodes as blocks.
func collectText(n *html.Node, blocks *[]string) {
	if n.Type == html.TextNode {
		if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
			*blocks = append(*blocks, trimmed)
		}
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, blocks)
	}
}
