// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cms

import (
	"net/url"
	"strings"
)

type posterResolver struct {
	base string // no trailing slash
}

// newPosterResolver picks the base for relative poster paths: the declared
// pic_domain when present, otherwise the origin of the API endpoint.
func newPosterResolver(picDomain, apiBase string) posterResolver {
	origin := Origin(apiBase)
	base := strings.TrimSpace(picDomain)
	if base == "" {
		return posterResolver{base: origin}
	}
	if !strings.Contains(base, "://") && !strings.HasPrefix(base, "//") {
		scheme := "https"
		if u, err := url.Parse(origin); err == nil && u.Scheme != "" {
			scheme = u.Scheme
		}
		base = scheme + "://" + base
	}
	return posterResolver{base: strings.TrimRight(base, "/")}
}

func (p posterResolver) resolve(pic string) string {
	switch {
	case pic == "":
		return ""
	case hasHTTPScheme(pic), strings.HasPrefix(pic, "//"):
		return pic
	case p.base == "":
		return pic
	}
	return p.base + "/" + strings.TrimLeft(pic, "/")
}

func hasHTTPScheme(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Origin returns scheme://host of an API base URL. A bare host is taken
// as https.
func Origin(apiBase string) string {
	apiBase = strings.TrimSpace(apiBase)
	if apiBase == "" {
		return ""
	}
	if !strings.Contains(apiBase, "://") {
		apiBase = "https://" + strings.TrimLeft(apiBase, "/")
	}
	u, err := url.Parse(apiBase)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
