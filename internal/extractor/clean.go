package extractor

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// strippedSelectors are removed from every page before any view is
// built: they carry chrome, not content.
const strippedSelectors = "script, style, noscript, nav, footer, aside, iframe, svg, form"

// contentSelectors are tried in order to focus on the page's substance;
// body is the catch-all.
var contentSelectors = []string{"main", "article", ".content", ".main-content", "body"}

// cleanHTML strips chrome elements, focuses on the page's content
// container, and returns its visible text with whitespace collapsed.
func cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find(strippedSelectors).Remove()

	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := collapse(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

// markdownView converts the stripped document to markdown. Used when
// the cleaned-text view came up short; markdown keeps list and heading
// structure that flat text loses.
func markdownView(html, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find(strippedSelectors).Remove()

	focused, err := doc.Find("body").First().Html()
	if err != nil || focused == "" {
		return ""
	}

	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Scheme + "://" + u.Host
	}
	converted, err := md.NewConverter(host, true, nil).ConvertString(focused)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(converted)
}

// collapse normalizes runs of whitespace to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// countWords counts whitespace-separated content words.
func countWords(s string) int {
	return len(strings.Fields(s))
}
