// Package content prepares user-authored post content: HTML sanitizing, slugs and tag lists.
package content

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func bodyPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements(
			"b", "strong", "i", "em", "u",
			"h1", "h2", "h3", "h4", "h5", "h6",
			"p", "br", "ul", "ol", "li", "blockquote", "code", "pre",
		)
		p.AllowAttrs("href", "name").OnElements("a")
		p.AllowAttrs("target").Matching(regexp.MustCompile(`^_(blank|self)$`)).OnElements("a")
		p.AllowAttrs("src", "alt").OnElements("img")
		p.AllowURLSchemes("http", "https", "mailto")
		p.AllowRelativeURLs(true)
		p.RequireParseableURLs(true)
		policy = p
	})
	return policy
}

// SanitizeBody strips markup outside the post body allow-list.
func SanitizeBody(html string) string {
	return bodyPolicy().Sanitize(html)
}

// PlainText strips all markup, used for notification previews.
func PlainText(html string) string {
	return bluemonday.StrictPolicy().Sanitize(html)
}
