package utils

import "github.com/microcosm-cc/bluemonday"

var noticePolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

// Sanitize strips scripts and unsafe attributes from operator-provided HTML
// such as the notice bar.
func Sanitize(input string) string {
	return noticePolicy.Sanitize(input)
}
