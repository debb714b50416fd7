// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package hls

import (
	"bufio"
	"strconv"
	"strings"
	"time"
)

// Summary is timeline metadata of a media playlist.
type Summary struct {
	Segments      int
	TotalDuration time.Duration
	// IsVOD is derived from #EXT-X-PLAYLIST-TYPE:VOD or #EXT-X-ENDLIST.
	IsVOD bool
}

// Summarize sums EXTINF durations per segment. Malformed durations count
// as zero; a summary is diagnostic only.
func Summarize(playlist string) Summary {
	var (
		sum  Summary
		next time.Duration
	)
	sc := bufio.NewScanner(strings.NewReader(playlist))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:VOD"), line == "#EXT-X-ENDLIST":
			sum.IsVOD = true
		case strings.HasPrefix(line, "#EXTINF:"):
			dur := strings.TrimPrefix(line, "#EXTINF:")
			if i := strings.IndexByte(dur, ','); i >= 0 {
				dur = dur[:i]
			}
			secs, err := strconv.ParseFloat(strings.TrimSpace(dur), 64)
			if err != nil {
				secs = 0
			}
			next = time.Duration(secs * float64(time.Second))
		case !strings.HasPrefix(line, "#"):
			sum.Segments++
			sum.TotalDuration += next
			next = 0
		}
	}
	return sum
}
