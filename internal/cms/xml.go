// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cms

import (
	"encoding/xml"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

type xmlDD struct {
	Flag  string `xml:"flag,attr"`
	Value string `xml:",chardata"`
}

type xmlVideo struct {
	ID       string  `xml:"id"`
	Name     string  `xml:"name"`
	Pic      string  `xml:"pic"`
	Year     string  `xml:"year"`
	Type     string  `xml:"type"`
	Note     string  `xml:"note"`
	Des      string  `xml:"des"`
	Actor    string  `xml:"actor"`
	Director string  `xml:"director"`
	Area     string  `xml:"area"`
	Lang     string  `xml:"lang"`
	Last     string  `xml:"last"`
	DD       []xmlDD `xml:"dl>dd"`
}

type xmlTy struct {
	ID   string `xml:"id,attr"`
	Name string `xml:",chardata"`
}

type xmlList struct {
	Page        flexString `xml:"page,attr"`
	PageCount   flexString `xml:"pagecount,attr"`
	RecordCount flexString `xml:"recordcount,attr"`
	PicDomain   string     `xml:"pic_domain,attr"`
	Videos      []xmlVideo `xml:"video"`
}

// root element name varies between CMS builds, so none is asserted.
type xmlRSS struct {
	List      xmlList `xml:"list"`
	Class     []xmlTy `xml:"class>ty"`
	PicDomain string  `xml:"pic_domain"`
}

func decodeXML(raw, apiBase string) (Payload, error) {
	dec := xml.NewDecoder(strings.NewReader(sanitizeXML(raw)))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	var doc xmlRSS
	if err := dec.Decode(&doc); err != nil {
		return Payload{}, err
	}

	picDomain := strings.TrimSpace(doc.List.PicDomain)
	if picDomain == "" {
		picDomain = strings.TrimSpace(doc.PicDomain)
	}
	posters := newPosterResolver(picDomain, apiBase)

	p := Payload{
		Page:      doc.List.Page.Int(),
		PageCount: doc.List.PageCount.Int(),
		Total:     doc.List.RecordCount.Int(),
	}
	for _, ty := range doc.Class {
		p.Categories = append(p.Categories, Category{ID: strings.TrimSpace(ty.ID), Name: strings.TrimSpace(ty.Name)})
	}
	for _, v := range doc.List.Videos {
		links := make([]string, 0, len(v.DD))
		flags := make([]string, 0, len(v.DD))
		for _, dd := range v.DD {
			links = append(links, strings.TrimSpace(dd.Value))
			flags = append(flags, strings.TrimSpace(dd.Flag))
		}
		p.Records = append(p.Records, MediaRecord{
			ID:           strings.TrimSpace(v.ID),
			Title:        strings.TrimSpace(v.Name),
			Year:         strings.TrimSpace(v.Year),
			Genre:        strings.TrimSpace(v.Type),
			TypeName:     strings.TrimSpace(v.Type),
			PosterURL:    posters.resolve(strings.TrimSpace(v.Pic)),
			Note:         strings.TrimSpace(v.Note),
			Synopsis:     strings.TrimSpace(v.Des),
			Cast:         strings.TrimSpace(v.Actor),
			Director:     strings.TrimSpace(v.Director),
			Area:         strings.TrimSpace(v.Area),
			Language:     strings.TrimSpace(v.Lang),
			UpdatedAt:    strings.TrimSpace(v.Last),
			PlayFrom:     strings.Join(flags, groupSep),
			RawPlayLinks: strings.Join(links, groupSep),
		})
	}
	return p, nil
}

var entityRef = regexp.MustCompile(`^(?:amp|lt|gt|quot|apos|#[0-9]+|#[xX][0-9a-fA-F]+);`)

// sanitizeXML escapes ampersands that do not start a known entity and drops
// C0 control characters other than tab, LF and CR. CDATA sections are
// copied untouched.
func sanitizeXML(raw string) string {
	const cdataOpen, cdataClose = "<![CDATA[", "]]>"

	var b strings.Builder
	b.Grow(len(raw) + 64)
	for i := 0; i < len(raw); {
		if strings.HasPrefix(raw[i:], cdataOpen) {
			end := strings.Index(raw[i+len(cdataOpen):], cdataClose)
			if end < 0 {
				b.WriteString(raw[i:])
				break
			}
			stop := i + len(cdataOpen) + end + len(cdataClose)
			b.WriteString(raw[i:stop])
			i = stop
			continue
		}
		c := raw[i]
		switch {
		case c == '&':
			if entityRef.MatchString(raw[i+1 : min(len(raw), i+12)]) {
				b.WriteByte('&')
			} else {
				b.WriteString("&amp;")
			}
		case c < 0x20 && c != '\t' && c != '\n' && c != '\r':
			// dropped
		default:
			b.WriteByte(c)
		}
		i++
	}
	return b.String()
}
