package generator

import "github.com/microcosm-cc/bluemonday"

var policy = bluemonday.UGCPolicy()

// Sanitize strips scripts, event handlers and other unsafe markup from
// model-generated HTML, keeping the formatting tags the drafts use.
func Sanitize(html string) string {
	return policy.Sanitize(html)
}
