// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// looksLikeHTML reports whether body is an HTML document rather than data.
func looksLikeHTML(body string) bool {
	head := strings.TrimSpace(body)
	if len(head) > 32 {
		head = head[:32]
	}
	head = strings.ToLower(head)
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// htmlTitle extracts the page title of an HTML error page for diagnostics.
func htmlTitle(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	if len(title) > 120 {
		title = title[:120]
	}
	return title
}

// hostAllowList matches a hostname against entries, including subdomains.
type hostAllowList []string

func newHostAllowList(hosts []string) hostAllowList {
	out := make(hostAllowList, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			out = append(out, strings.TrimPrefix(h, "."))
		}
	}
	return out
}

func (l hostAllowList) allows(target string) bool {
	if len(l) == 0 {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range l {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
