/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: meta.go
Description: Extracts a policy declared through <meta http-equiv="content-security-policy">
from a rendered DOM snapshot.
*/

package csp

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FromHTML returns the content of the first CSP meta tag, or "" when none is present.
func FromHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	var policy string
	doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "content-security-policy") {
			return true
		}
		policy, _ = s.Attr("content")
		return false
	})
	return policy
}
