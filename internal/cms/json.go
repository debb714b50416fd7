// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cms

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexString accepts a JSON string, number, boolean or null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
	case b[0] == '{' || b[0] == '[':
		*s = ""
	default:
		*s = flexString(b)
	}
	return nil
}

func (s flexString) String() string { return strings.TrimSpace(string(s)) }

func (s flexString) Int() int {
	v := s.String()
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return 0
}

type jsonCategory struct {
	TypeID   flexString `json:"type_id"`
	TypeName flexString `json:"type_name"`
}

type jsonVod struct {
	ID       flexString `json:"vod_id"`
	Name     flexString `json:"vod_name"`
	Pic      flexString `json:"vod_pic"`
	Year     flexString `json:"vod_year"`
	Class    flexString `json:"vod_class"`
	TypeName flexString `json:"type_name"`
	Remarks  flexString `json:"vod_remarks"`
	Content  flexString `json:"vod_content"`
	Actor    flexString `json:"vod_actor"`
	Director flexString `json:"vod_director"`
	Area     flexString `json:"vod_area"`
	Lang     flexString `json:"vod_lang"`
	Time     flexString `json:"vod_time"`
	PlayFrom flexString `json:"vod_play_from"`
	PlayURL  flexString `json:"vod_play_url"`
}

type jsonPayload struct {
	Class     []jsonCategory `json:"class"`
	List      []jsonVod      `json:"list"`
	PicDomain flexString     `json:"pic_domain"`
	Page      flexString     `json:"page"`
	PageCount flexString     `json:"pagecount"`
	Total     flexString     `json:"total"`
}

func decodeJSON(raw, apiBase string) (Payload, error) {
	var doc jsonPayload
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(raw), "\ufeff")), &doc); err != nil {
		return Payload{}, err
	}

	posters := newPosterResolver(doc.PicDomain.String(), apiBase)
	p := Payload{
		Page:      doc.Page.Int(),
		PageCount: doc.PageCount.Int(),
		Total:     doc.Total.Int(),
	}
	for _, c := range doc.Class {
		p.Categories = append(p.Categories, Category{ID: c.TypeID.String(), Name: c.TypeName.String()})
	}
	for _, v := range doc.List {
		genre := v.Class.String()
		if genre == "" {
			genre = v.TypeName.String()
		}
		p.Records = append(p.Records, MediaRecord{
			ID:           v.ID.String(),
			Title:        v.Name.String(),
			Year:         v.Year.String(),
			Genre:        genre,
			TypeName:     v.TypeName.String(),
			PosterURL:    posters.resolve(v.Pic.String()),
			Note:         v.Remarks.String(),
			Synopsis:     v.Content.String(),
			Cast:         v.Actor.String(),
			Director:     v.Director.String(),
			Area:         v.Area.String(),
			Language:     v.Lang.String(),
			UpdatedAt:    v.Time.String(),
			PlayFrom:     v.PlayFrom.String(),
			RawPlayLinks: v.PlayURL.String(),
		})
	}
	return p, nil
}
