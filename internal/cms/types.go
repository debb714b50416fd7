// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package cms decodes video-CMS catalog responses (JSON and MacCMS XML)
// into normalized media records, and queries CMS endpoints through the
// relay fallback chain.
package cms

// SourceEndpoint is one configured catalog API.
type SourceEndpoint struct {
	Name       string `yaml:"name" json:"name"`
	APIBaseURL string `yaml:"api" json:"api"`
	IsCustom   bool   `yaml:"custom,omitempty" json:"isCustom,omitempty"`
	IsDisabled bool   `yaml:"disabled,omitempty" json:"isDisabled,omitempty"`
}

// SourceRef points at the same title on another source.
type SourceRef struct {
	API   string `json:"api"`
	Name  string `json:"name"`
	VodID string `json:"vodId"`
}

// MediaRecord is the normalized catalog entry.
type MediaRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Year         string `json:"year,omitempty"`
	Genre        string `json:"genre,omitempty"`
	TypeName     string `json:"typeName,omitempty"`
	PosterURL    string `json:"posterUrl,omitempty"`
	Note         string `json:"note,omitempty"`
	Synopsis     string `json:"synopsis,omitempty"`
	Cast         string `json:"cast,omitempty"`
	Director     string `json:"director,omitempty"`
	Area         string `json:"area,omitempty"`
	Language     string `json:"language,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
	PlayFrom     string `json:"playFrom,omitempty"`
	RawPlayLinks string `json:"rawPlayLinks,omitempty"`

	SourceAPI        string      `json:"sourceApi,omitempty"`
	SourceName       string      `json:"sourceName,omitempty"`
	AvailableSources []SourceRef `json:"availableSources,omitempty"`

	// Episodes is the preferred play-link group (see SelectGroup).
	Episodes []Episode `json:"episodes,omitempty"`
}

// Category is a catalog type/genre listing.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Payload is one decoded CMS response.
type Payload struct {
	Format     Format        `json:"-"`
	Records    []MediaRecord `json:"records"`
	Categories []Category    `json:"categories,omitempty"`
	Page       int           `json:"page"`
	PageCount  int           `json:"pageCount"`
	Total      int           `json:"total"`
}
