package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[keyboard]\nsticky_shift = false\n"), 0600))

	l := NewLoader(path)
	defer l.Close()

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.False(t, cfg.Keyboard.StickyShift)

	var latest atomic.Pointer[KeyboardSettings]
	l.OnChange(func(c *Config) {
		latest.Store(c.KeyboardSnapshot())
	})
	require.NoError(t, l.Watch())

	require.NoError(t, os.WriteFile(path, []byte("[keyboard]\nsticky_shift = true\n"), 0600))

	require.Eventually(t, func() bool {
		s := latest.Load()
		return s != nil && s.StickyShift
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, l.Config().Keyboard.StickyShift)
}

func TestLoaderKeepsConfigOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[keyboard]\nselected_language = \"fr\"\n"), 0600))

	l := NewLoader(path)
	defer l.Close()
	_, err := l.Load()
	require.NoError(t, err)
	require.NoError(t, l.Watch())

	require.NoError(t, os.WriteFile(path, []byte("[keyboard]\nkey_repeat_rate_ms = 0\n"), 0600))

	select {
	case err := <-l.Errors():
		assert.ErrorIs(t, err, ErrInvalidConfig)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a reload error")
	}
	assert.Equal(t, "fr", l.Config().Keyboard.SelectedLanguage)
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "en", cfg.Keyboard.SelectedLanguage)

	_, created, err = LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestAutoDetectFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physkeyrc")
	require.NoError(t, os.WriteFile(path, []byte(`{"keyboard":{"selected_language":"it"}}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "it", cfg.Keyboard.SelectedLanguage)
}

func TestLoaderReloadNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keyboard:\n  selected_language: de\n"), 0600))

	l := NewLoader(path)
	defer l.Close()
	_, err := l.Load()
	require.NoError(t, err)

	var got []string
	l.OnChange(func(c *Config) { got = append(got, c.Keyboard.SelectedLanguage) })

	require.NoError(t, os.WriteFile(path, []byte("keyboard:\n  selected_language: nl\n"), 0600))
	require.NoError(t, l.Reload())
	assert.Equal(t, []string{"nl"}, got)

	require.NoError(t, os.WriteFile(path, []byte("keyboard: [broken\n"), 0600))
	assert.Error(t, l.Reload())
	assert.Equal(t, "nl", l.Config().Keyboard.SelectedLanguage)
	assert.Len(t, got, 1)

	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close(), "second Close is a no-op")
}
