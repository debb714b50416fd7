// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package hls sanitizes HLS playlists by stripping segments that come from
// a minority origin (injected ads), and holds the resulting synthetic
// playlists for the player.
package hls

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	tagStreamInf = "#EXT-X-STREAM-INF"
	tagKey       = "#EXT-X-KEY"
	tagMap       = "#EXT-X-MAP"
)

// segmentTags are directives scoped to the segment that follows them.
var segmentTags = []string{
	"#EXTINF",
	"#EXT-X-BYTERANGE",
	"#EXT-X-KEY",
	"#EXT-X-DISCONTINUITY",
	"#EXT-X-PROGRAM-DATE-TIME",
	"#EXT-X-MAP",
	"#EXT-X-BITRATE",
	"#EXT-X-GAP",
}

// Document is an HLS playlist as ordered lines (line terminators removed).
type Document struct {
	Lines []string
}

// ParseDocument splits text into lines, accepting LF and CRLF. Lines have
// no length limit; the fetch already caps the body size.
func ParseDocument(text string) Document {
	if text == "" {
		return Document{}
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return Document{Lines: lines}
}

// IsMaster reports whether the document lists stream variants.
func (d Document) IsMaster() bool {
	for _, l := range d.Lines {
		if strings.HasPrefix(strings.TrimSpace(l), tagStreamInf) {
			return true
		}
	}
	return false
}

// String joins the lines with LF and a trailing newline.
func (d Document) String() string {
	if len(d.Lines) == 0 {
		return ""
	}
	return strings.Join(d.Lines, "\n") + "\n"
}

func isURILine(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && !strings.HasPrefix(t, "#")
}

func isSegmentTag(line string) bool {
	t := strings.TrimSpace(line)
	for _, tag := range segmentTags {
		if t == tag || strings.HasPrefix(t, tag+":") {
			return true
		}
	}
	return false
}

// Variant is one entry of a master playlist.
type Variant struct {
	Bandwidth int64
	URI       string
}

// Variants lists the stream variants in document order.
func (d Document) Variants() []Variant {
	var out []Variant
	for i := 0; i < len(d.Lines); i++ {
		line := strings.TrimSpace(d.Lines[i])
		if !strings.HasPrefix(line, tagStreamInf) {
			continue
		}
		attrs := parseAttributes(strings.TrimPrefix(strings.TrimPrefix(line, tagStreamInf), ":"))
		bw, _ := strconv.ParseInt(attrs["BANDWIDTH"], 10, 64)
		for j := i + 1; j < len(d.Lines); j++ {
			if isURILine(d.Lines[j]) {
				out = append(out, Variant{Bandwidth: bw, URI: strings.TrimSpace(d.Lines[j])})
				i = j
				break
			}
			if strings.HasPrefix(strings.TrimSpace(d.Lines[j]), tagStreamInf) {
				break
			}
		}
	}
	return out
}

// BestVariant returns the variant with the strictly highest bandwidth;
// the first one wins ties.
func BestVariant(variants []Variant) (Variant, bool) {
	best, found := Variant{Bandwidth: -1}, false
	for _, v := range variants {
		if v.Bandwidth > best.Bandwidth {
			best, found = v, true
		}
	}
	return best, found
}

// parseAttributes parses an HLS attribute list (KEY=value,KEY="quoted,value").
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for len(s) > 0 {
		s = strings.TrimLeft(s, " ,")
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.ToUpper(strings.TrimSpace(s[:eq]))
		s = s[eq+1:]
		var val string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				val, s = s[1:], ""
			} else {
				val, s = s[1:end+1], s[end+2:]
			}
		} else if comma := strings.IndexByte(s, ','); comma >= 0 {
			val, s = s[:comma], s[comma+1:]
		} else {
			val, s = s, ""
		}
		attrs[key] = strings.TrimSpace(val)
	}
	return attrs
}

// Fingerprint groups segment URLs by probable origin: "host|directory".
type Fingerprint string

// FingerprintOf returns the fingerprint of an absolute segment URL.
func FingerprintOf(u *url.URL) Fingerprint {
	dir := u.Path
	if i := strings.LastIndexByte(dir, '/'); i >= 0 {
		dir = dir[:i+1]
	} else {
		dir = "/"
	}
	return Fingerprint(u.Hostname() + "|" + dir)
}

// rewriteURIAttr makes the URI="..." attribute of a KEY or MAP tag absolute.
func rewriteURIAttr(line string, base *url.URL) string {
	const marker = `URI="`
	i := strings.Index(line, marker)
	if i < 0 {
		return line
	}
	start := i + len(marker)
	end := strings.IndexByte(line[start:], '"')
	if end < 0 {
		return line
	}
	ref, err := url.Parse(line[start : start+end])
	if err != nil {
		return line
	}
	return line[:start] + base.ResolveReference(ref).String() + line[start+end:]
}
