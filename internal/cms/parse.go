// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cms

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ManuGH/vodagg/internal/metrics"
	"github.com/ManuGH/vodagg/internal/relay"
)

// ErrInvalidPayload is the relay sentinel: a body that is neither JSON nor
// XML, or that fails to decode, is reported the same way as an HTML page
// served in place of data.
var ErrInvalidPayload = relay.ErrInvalidPayload

// Format is the detected wire schema of a CMS response.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatXML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatXML:
		return "xml"
	}
	return "unknown"
}

// Detect classifies raw by its first non-whitespace character.
func Detect(raw string) (Format, error) {
	i := strings.IndexFunc(raw, func(r rune) bool { return !unicode.IsSpace(r) && r != '\ufeff' })
	if i < 0 {
		return FormatUnknown, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	switch raw[i] {
	case '{':
		return FormatJSON, nil
	case '<':
		return FormatXML, nil
	}
	return FormatUnknown, fmt.Errorf("%w: unrecognized leading character %q", ErrInvalidPayload, raw[i])
}

// Parse decodes a CMS response. apiBase is the endpoint the body came from
// (full URL or bare host); it is the fallback origin for relative posters.
// Records without an id are dropped, as are repeats of an id already seen.
func Parse(raw, apiBase string) (Payload, error) {
	format, err := Detect(raw)
	if err != nil {
		metrics.IncCMSPayload(FormatUnknown.String(), "rejected")
		return Payload{}, err
	}

	var p Payload
	switch format {
	case FormatJSON:
		p, err = decodeJSON(raw, apiBase)
	case FormatXML:
		p, err = decodeXML(raw, apiBase)
	}
	if err != nil {
		metrics.IncCMSPayload(format.String(), "decode_error")
		return Payload{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, format, err)
	}
	p.Format = format
	p.Records = dedupeByID(p.Records)
	for i := range p.Records {
		if g, ok := SelectGroup(ParsePlayLinksWithFlags(p.Records[i].RawPlayLinks, p.Records[i].PlayFrom)); ok {
			p.Records[i].Episodes = g.Episodes
		}
	}
	metrics.IncCMSPayload(format.String(), "ok")
	return p, nil
}

func dedupeByID(in []MediaRecord) []MediaRecord {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, r := range in {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
