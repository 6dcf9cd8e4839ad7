/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: context.go
Description: Reflection context classification. Locates the marker in a DOM snapshot and
reports which syntactic contexts it landed in.
*/

package detector

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Reflection contexts
const (
	ContextScript       = "script"
	ContextEventHandler = "event-handler"
	ContextAttribute    = "attribute"
	ContextText         = "text"
	ContextComment      = "comment"
)

// ReflectionContexts returns the distinct contexts the marker appears in, sorted.
// Returns nil when the marker is absent or the snapshot cannot be parsed.
func ReflectionContexts(dom, marker string) []string {
	if marker == "" || !strings.Contains(dom, marker) {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(dom))
	if err != nil {
		return nil
	}

	found := make(map[string]struct{})
	for _, root := range doc.Nodes {
		walk(root, marker, found)
	}

	out := make([]string, 0, len(found))
	for ctx := range found {
		out = append(out, ctx)
	}
	sort.Strings(out)
	return out
}

func walk(n *html.Node, marker string, found map[string]struct{}) {
	switch n.Type {
	case html.CommentNode:
		if strings.Contains(n.Data, marker) {
			found[ContextComment] = struct{}{}
		}
	case html.TextNode:
		if strings.Contains(n.Data, marker) {
			if n.Parent != nil && n.Parent.Type == html.ElementNode && n.Parent.Data == "script" {
				found[ContextScript] = struct{}{}
			} else {
				found[ContextText] = struct{}{}
			}
		}
	case html.ElementNode:
		for _, attr := range n.Attr {
			if !strings.Contains(attr.Val, marker) && !strings.Contains(attr.Key, marker) {
				continue
			}
			if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
				found[ContextEventHandler] = struct{}{}
			} else {
				found[ContextAttribute] = struct{}{}
			}
		}
		// injected tag name
		if strings.Contains(n.Data, marker) {
			found[ContextText] = struct{}{}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, marker, found)
	}
}
