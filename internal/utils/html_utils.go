package utils

import (
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EnhanceImages adds lazy loading and referrer attributes to every <img>
// in an already sanitized HTML fragment.
func EnhanceImages(htmlStr string) template.HTML {
	if htmlStr == "" || !strings.Contains(htmlStr, "<img") {
		return template.HTML(htmlStr)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return template.HTML(htmlStr)
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
	})

	// goquery wraps fragments in a full document; keep only the body.
	out, _ := doc.Find("body").Html()
	if out == "" {
		out, _ = doc.Html()
	}
	return template.HTML(out)
}

// Excerpt keeps the first maxBlocks top-level elements of an HTML fragment.
// Fragments without block elements fall back to 300 characters of text.
func Excerpt(htmlStr string, maxBlocks int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}
	body := doc.Find("body")
	blocks := body.Children()
	if blocks.Length() == 0 {
		text := []rune(strings.TrimSpace(body.Text()))
		if len(text) > 300 {
			return string(text[:300]) + "..."
		}
		return string(text)
	}

	var b strings.Builder
	blocks.Slice(0, min(maxBlocks, blocks.Length())).Each(func(_ int, s *goquery.Selection) {
		if h, err := goquery.OuterHtml(s); err == nil {
			b.WriteString(h)
			b.WriteString("\n")
		}
	})
	return strings.TrimSpace(b.String())
}
