// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/ManuGH/vodagg/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `sources:
  - name: One
    api: https://one.example/api.php/provide/vod
  - name: Two
    api: https://two.example/api.php/provide/vod
    disabled: true
  - name: Mine
    api: https://mine.example/api
    custom: true
  - name: One again
    api: https://one.example/api.php/provide/vod
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	return path
}

func TestOpen(t *testing.T) {
	s, err := Open(writeSample(t))
	require.NoError(t, err)

	assert.Len(t, s.All(), 4)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, map[string]bool{"https://two.example/api.php/provide/vod": true}, s.Disabled())

	src, ok := s.Lookup("https://mine.example/api")
	require.True(t, ok)
	assert.True(t, src.IsCustom)
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Empty(t, s.All())
}

func TestOpen_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: x\n    url: https://x\n"), 0o600))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	path := writeSample(t)
	s, err := Open(path)
	require.NoError(t, err)

	sources := s.All()
	res := scanner.Result{
		DuplicateCount: 1,
		DeadAPIs:       []string{"https://two.example/api.php/provide/vod", "https://mine.example/api"},
		WorkingSources: []cms.SourceEndpoint{sources[0]},
	}
	plan := scanner.Plan(res, sources, s.Disabled())
	assert.Empty(t, plan.DisableBuiltins, "already disabled")
	assert.Equal(t, []string{"https://mine.example/api"}, plan.DropCustom)

	require.NoError(t, s.Apply(context.Background(), plan))
	assert.Equal(t, []cms.SourceEndpoint{
		{Name: "One", APIBaseURL: "https://one.example/api.php/provide/vod"},
		{Name: "Two", APIBaseURL: "https://two.example/api.php/provide/vod", IsDisabled: true},
	}, s.All())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, s.All(), reopened.All(), "apply is written through")
}

func TestApply_DisablesDeadBuiltin(t *testing.T) {
	s, err := Open(writeSample(t))
	require.NoError(t, err)

	err = s.Apply(context.Background(), scanner.CleanupPlan{DisableBuiltins: []string{"https://one.example/api.php/provide/vod"}})
	require.NoError(t, err)
	_, stillListed := s.Lookup("https://one.example/api.php/provide/vod")
	assert.True(t, stillListed)
	assert.True(t, s.Disabled()["https://one.example/api.php/provide/vod"])
}

func TestAddRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	s, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, cms.SourceEndpoint{APIBaseURL: "https://x.example/api"}))
	assert.ErrorIs(t, s.Add(ctx, cms.SourceEndpoint{APIBaseURL: "https://x.example/api"}), ErrDuplicate)

	got, ok := s.Lookup("https://x.example/api")
	require.True(t, ok)
	assert.Equal(t, "https://x.example/api", got.Name)
	assert.True(t, got.IsCustom)

	require.NoError(t, s.SetDisabled(ctx, "https://x.example/api", true))
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Remove(ctx, "https://x.example/api"))
	assert.ErrorIs(t, s.Remove(ctx, "https://x.example/api"), ErrUnknown)
	assert.ErrorIs(t, s.SetDisabled(ctx, "https://nope", false), ErrUnknown)
}

func TestRemove_BuiltinRefused(t *testing.T) {
	s, err := Open(writeSample(t))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Remove(context.Background(), "https://one.example/api.php/provide/vod"), ErrNotCustom)
	assert.Len(t, s.All(), 4)
}
