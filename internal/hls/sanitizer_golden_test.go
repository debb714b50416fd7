// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package hls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_Goldens(t *testing.T) {
	fixtureDir := filepath.Join("testdata", "fixtures")
	goldenDir := filepath.Join("testdata", "golden")
	updateGoldens := os.Getenv("UPDATE_GOLDEN") == "1"

	srv := httptest.NewServer(http.StripPrefix("/video/abc/", http.FileServer(http.Dir(fixtureDir))))
	defer srv.Close()

	tests := []struct {
		fixture     string
		wantRemoved int
	}{
		{fixture: "ads_8_2.m3u8", wantRemoved: 2},
		{fixture: "fmp4_byterange.m3u8", wantRemoved: 1},
	}

	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			res, err := NewSanitizer().Sanitize(context.Background(), srv.URL+"/video/abc/"+tt.fixture)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, res.RemovedCount)
			assert.False(t, res.ViaMaster)

			got := strings.ReplaceAll(res.Content, srv.URL, "{{BASE}}")
			goldenPath := filepath.Join(goldenDir, tt.fixture)
			if updateGoldens {
				require.NoError(t, os.WriteFile(goldenPath, []byte(got), 0o644))
				return
			}
			want, err := os.ReadFile(goldenPath)
			require.NoError(t, err)
			if diff := cmp.Diff(string(want), got); diff != "" {
				t.Errorf("sanitized playlist mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
