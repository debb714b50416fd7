// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cms

import "strings"

const (
	groupSep   = "$$$"
	episodeSep = "#"
	nameSep    = "$"
)

// Episode is one playable entry of a play-link group.
type Episode struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

// Group is one playback line (typically one per player/CDN).
type Group struct {
	Flag     string    `json:"flag,omitempty"`
	Episodes []Episode `json:"episodes"`
}

// ParsePlayLinks splits a raw play-link string:
//
//	links   := group ("$$$" group)*
//	group   := episode ("#" episode)*
//	episode := name "$" url | url
//
// The name ends at the first "$". Empty episodes are skipped; empty groups
// are kept so group indexes line up with the play-from flags.
func ParsePlayLinks(raw string) []Group {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, groupSep)
	groups := make([]Group, 0, len(parts))
	for _, part := range parts {
		var g Group
		for _, ep := range strings.Split(part, episodeSep) {
			if strings.TrimSpace(ep) == "" {
				continue
			}
			if name, u, ok := strings.Cut(ep, nameSep); ok {
				g.Episodes = append(g.Episodes, Episode{Name: name, URL: u})
			} else {
				g.Episodes = append(g.Episodes, Episode{URL: ep})
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// ParsePlayLinksWithFlags is ParsePlayLinks plus the "$$$"-separated
// play-from flags assigned to groups by position.
func ParsePlayLinksWithFlags(raw, playFrom string) []Group {
	groups := ParsePlayLinks(raw)
	if playFrom == "" {
		return groups
	}
	for i, f := range strings.Split(playFrom, groupSep) {
		if i < len(groups) {
			groups[i].Flag = f
		}
	}
	return groups
}

// FormatPlayLinks is the inverse of ParsePlayLinks for well-formed input.
func FormatPlayLinks(groups []Group) string {
	var b strings.Builder
	for gi, g := range groups {
		if gi > 0 {
			b.WriteString(groupSep)
		}
		for ei, ep := range g.Episodes {
			if ei > 0 {
				b.WriteString(episodeSep)
			}
			if ep.Name != "" {
				b.WriteString(ep.Name)
				b.WriteString(nameSep)
			}
			b.WriteString(ep.URL)
		}
	}
	return b.String()
}

// SelectGroup picks the group to play: the first containing an .m3u8 URL,
// else the first containing an .mp4 URL, else the first non-empty group.
func SelectGroup(groups []Group) (Group, bool) {
	for _, ext := range []string{".m3u8", ".mp4"} {
		for _, g := range groups {
			if g.contains(ext) {
				return g, true
			}
		}
	}
	for _, g := range groups {
		if len(g.Episodes) > 0 {
			return g, true
		}
	}
	return Group{}, false
}

func (g Group) contains(ext string) bool {
	for _, ep := range g.Episodes {
		if strings.Contains(strings.ToLower(ep.URL), ext) {
			return true
		}
	}
	return false
}
