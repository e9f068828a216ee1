package rules

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `
rules:
  - rule: "kitchen_sensor_motion == true"
    actions:
      - topic: /kitchen/lamp/set
        params: {power: "on"}
  - id: night-off
    rule: "global_datetime_time > '23:00:00'"
    actions:
      - topic: /kitchen/lamp/set
        params: {power: "off"}
      - topic: /bedroom/lamp/set
        params: {power: "off"}
`

func writeRules(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeRules(t, t.TempDir(), sampleDocument)

	rs, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())

	assert.NotEmpty(t, rs.Rules[0].ID, "unnamed rules get a generated ID")
	assert.Equal(t, "night-off", rs.Rules[1].ID)
	assert.Equal(t, "kitchen_sensor_motion == true", rs.Rules[0].Expression)
	require.Len(t, rs.Rules[1].Actions, 2)
	assert.Equal(t, "/bedroom/lamp/set", rs.Rules[1].Actions[1].Topic)
	assert.False(t, rs.Fingerprint.IsZero())
}

func TestLoadFile_InvalidDocuments(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"not_yaml", "rules: [}{"},
		{"empty_expression", "rules:\n  - rule: \"\"\n    actions: []\n"},
		{"bad_action_topic", "rules:\n  - rule: \"a == 1\"\n    actions:\n      - topic: no-slash\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRules(t, dir, tt.content)
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}

func TestRepository_InitializeWithMissingFile(t *testing.T) {
	r := NewRepository(Config{Path: filepath.Join(t.TempDir(), "absent.yaml")}, nil)

	require.NoError(t, r.Initialize())

	rs := r.Current()
	require.NotNil(t, rs)
	assert.Equal(t, 0, rs.Len())
}

func TestRepository_ReloadOnFingerprintChange(t *testing.T) {
	dir := t.TempDir()
	path := writeRules(t, dir, sampleDocument)

	r := NewRepository(Config{Path: path, PollInterval: time.Hour}, nil)
	require.NoError(t, r.Initialize())
	require.Equal(t, 2, r.Current().Len())

	// Rewrite with one rule and a different mtime.
	single := "rules:\n  - rule: \"a_b_c == 5\"\n    actions:\n      - topic: /x/y/z\n        params: {on: true}\n"
	require.NoError(t, os.WriteFile(path, []byte(single), 0o644))
	newTime := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, newTime, newTime))

	r.checkReload()
	assert.Equal(t, 1, r.Current().Len())
}

func TestRepository_ParseFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := writeRules(t, dir, sampleDocument)

	r := NewRepository(Config{Path: path, PollInterval: time.Hour}, nil)
	require.NoError(t, r.Initialize())
	previous := r.Current()

	require.NoError(t, os.WriteFile(path, []byte("rules: [}{"), 0o644))
	newTime := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, newTime, newTime))

	r.checkReload()
	assert.Same(t, previous, r.Current())
	assert.Equal(t, 2, r.Current().Len())
}

func TestRepository_UnchangedFingerprintSkipsParse(t *testing.T) {
	dir := t.TempDir()
	path := writeRules(t, dir, sampleDocument)

	r := NewRepository(Config{Path: path, PollInterval: time.Hour}, nil)
	require.NoError(t, r.Initialize())
	before := r.Current()

	r.checkReload()
	assert.Same(t, before, r.Current())
}

func TestRepository_ConcurrentCurrentDuringReload(t *testing.T) {
	dir := t.TempDir()
	path := writeRules(t, dir, sampleDocument)

	r := NewRepository(Config{Path: path, PollInterval: time.Hour}, nil)
	require.NoError(t, r.Initialize())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				rs := r.Current()
				// Readers always observe a fully-formed set.
				assert.NotNil(t, rs)
				n := rs.Len()
				assert.True(t, n == 1 || n == 2)
			}
		}
	}()

	single := "rules:\n  - rule: \"a_b_c == 5\"\n    actions:\n      - topic: /x/y/z\n        params: {on: true}\n"
	for i := 0; i < 10; i++ {
		content := sampleDocument
		if i%2 == 0 {
			content = single
		}
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		newTime := time.Now().Add(time.Duration(i+1) * time.Second)
		require.NoError(t, os.Chtimes(path, newTime, newTime))
		r.checkReload()
	}

	close(stop)
	wg.Wait()
}

func TestRepository_Lifecycle(t *testing.T) {
	path := writeRules(t, t.TempDir(), sampleDocument)

	r := NewRepository(Config{Path: path, PollInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, r.Initialize())

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	assert.Error(t, r.Start(ctx), "double start is rejected")

	require.NoError(t, r.Stop(time.Second))
	require.NoError(t, r.Stop(time.Second), "stop is idempotent")
}
