// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package search

import (
	"testing"

	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func rec(api, name, id, title string) cms.MediaRecord {
	return cms.MediaRecord{ID: id, Title: title, SourceAPI: api, SourceName: name}
}

func TestMerge_SameTitleAcrossSources(t *testing.T) {
	a := rec("https://a.example/api", "A", "1", "Inception")
	b := rec("https://b.example/api", "B", "2", "  inception ")
	b.Year = "2010"
	b.PosterURL = "https://b.example/p.jpg"

	got := Merge([][]cms.MediaRecord{{a}, {b}})

	want := []cms.MediaRecord{{
		ID:         "1",
		Title:      "Inception",
		Year:       "2010",
		PosterURL:  "https://b.example/p.jpg",
		SourceAPI:  "https://a.example/api",
		SourceName: "A",
		AvailableSources: []cms.SourceRef{
			{API: "https://a.example/api", Name: "A", VodID: "1"},
			{API: "https://b.example/api", Name: "B", VodID: "2"},
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_CanonicalFieldsNotOverwritten(t *testing.T) {
	a := rec("a", "A", "1", "Heat")
	a.Year = "1995"
	b := rec("b", "B", "2", "Heat")
	b.Year = "2020"

	got := Merge([][]cms.MediaRecord{{a}, {b}})
	assert.Len(t, got, 1)
	assert.Equal(t, "1995", got[0].Year)
}

func TestMerge_DedupByAPI(t *testing.T) {
	got := Merge([][]cms.MediaRecord{
		{rec("a", "A", "1", "Heat"), rec("a", "A", "7", "HEAT")},
		{rec("b", "B", "2", "Heat")},
	})
	assert.Len(t, got, 1)
	assert.Equal(t, []cms.SourceRef{{API: "a", Name: "A", VodID: "1"}, {API: "b", Name: "B", VodID: "2"}}, got[0].AvailableSources)
}

func TestMerge_PreservesFirstSeenOrder(t *testing.T) {
	got := Merge([][]cms.MediaRecord{
		{rec("a", "A", "1", "Zeta"), rec("a", "A", "2", "Alpha")},
		{rec("b", "B", "3", "Beta"), rec("b", "B", "4", "zeta")},
	})
	titles := make([]string, len(got))
	for i, r := range got {
		titles[i] = r.Title
	}
	assert.Equal(t, []string{"Zeta", "Alpha", "Beta"}, titles)
}

func TestMerge_BlankTitlesKept(t *testing.T) {
	got := Merge([][]cms.MediaRecord{{rec("a", "A", "1", " ")}, {rec("b", "B", "2", "")}})
	assert.Len(t, got, 2)
	assert.Nil(t, got[0].AvailableSources)
}

func TestMerge_DoesNotAliasInput(t *testing.T) {
	in := rec("a", "A", "1", "Heat")
	in.AvailableSources = []cms.SourceRef{{API: "stale"}}
	lists := [][]cms.MediaRecord{{in}, {rec("b", "B", "2", "Heat")}}

	Merge(lists)
	assert.Equal(t, []cms.SourceRef{{API: "stale"}}, lists[0][0].AvailableSources)
}
