// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package search

import (
	"strings"

	"github.com/ManuGH/vodagg/internal/cms"
)

// NormalizeTitle is the grouping key for merging: trimmed and lowercased.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Merge collapses same-title records across sources. Lists are walked in
// order; the first record of a title is canonical and every later match
// adds its {api, name, vodId} to AvailableSources (one entry per api) and
// fills the canonical Year and PosterURL when those are empty.
// Records with a blank title are kept as they are.
func Merge(perSource [][]cms.MediaRecord) []cms.MediaRecord {
	var out []cms.MediaRecord
	index := make(map[string]int)

	for _, list := range perSource {
		for _, r := range list {
			key := NormalizeTitle(r.Title)
			if key == "" {
				out = append(out, r)
				continue
			}

			i, seen := index[key]
			if !seen {
				r.AvailableSources = []cms.SourceRef{{API: r.SourceAPI, Name: r.SourceName, VodID: r.ID}}
				index[key] = len(out)
				out = append(out, r)
				continue
			}

			canonical := &out[i]
			if !hasAPI(canonical.AvailableSources, r.SourceAPI) {
				canonical.AvailableSources = append(canonical.AvailableSources,
					cms.SourceRef{API: r.SourceAPI, Name: r.SourceName, VodID: r.ID})
			}
			if canonical.Year == "" {
				canonical.Year = r.Year
			}
			if canonical.PosterURL == "" {
				canonical.PosterURL = r.PosterURL
			}
		}
	}
	return out
}

func hasAPI(refs []cms.SourceRef, api string) bool {
	for _, ref := range refs {
		if ref.API == api {
			return true
		}
	}
	return false
}
