package shortcuts

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physkey/internal/config"
	"physkey/internal/ime"
	"physkey/internal/schemavalidation"
)

var _ ime.ShortcutLookup = (*Repository)(nil)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := NewRepository(NewMemoryStorage(), nil)
	require.NoError(t, err)
	return r
}

func mustAdd(t *testing.T, r *Repository, sc Shortcut) Shortcut {
	t.Helper()
	added, err := r.Add(sc)
	require.NoError(t, err)
	return added
}

func TestDefaults(t *testing.T) {
	langs := DefaultLanguages()
	for _, want := range []string{"en", "en-GB", "fr", "de", "es", "tr"} {
		assert.Contains(t, langs, want)
	}

	all, err := Defaults()
	require.NoError(t, err)
	assert.NotEmpty(t, all)
	for _, sc := range all {
		assert.True(t, sc.IsDefault, "default %s", sc)
		assert.NoError(t, sc.Validate())
	}

	en, err := DefaultsFor("en")
	require.NoError(t, err)
	found := false
	for _, sc := range en {
		assert.Equal(t, "en", sc.Language)
		if sc.Trigger == "dont" {
			found = true
			assert.Equal(t, "don't", sc.Replacement)
		}
	}
	assert.True(t, found, "en defaults should include dont")

	none, err := DefaultsFor("xx")
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func TestDefaultsHaveNoConflicts(t *testing.T) {
	for _, lang := range DefaultLanguages() {
		scs, err := DefaultsFor(lang)
		require.NoError(t, err)
		for i := range scs {
			for j := i + 1; j < len(scs); j++ {
				assert.False(t, scs[i].Conflicts(scs[j]), "%s conflicts with %s", scs[i], scs[j])
			}
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		sc   Shortcut
		ok   bool
	}{
		{"valid", Shortcut{Trigger: "brb", Replacement: "be right back", Language: "en"}, true},
		{"regional", Shortcut{Trigger: "qqch", Replacement: "quelque chose", Language: "fr-CA"}, true},
		{"empty trigger", Shortcut{Replacement: "x", Language: "en"}, false},
		{"space in trigger", Shortcut{Trigger: "a b", Replacement: "x", Language: "en"}, false},
		{"period in trigger", Shortcut{Trigger: "e.g", Replacement: "x", Language: "en"}, false},
		{"apostrophe in trigger", Shortcut{Trigger: "don't", Replacement: "x", Language: "en"}, false},
		{"empty replacement", Shortcut{Trigger: "brb", Language: "en"}, false},
		{"no language", Shortcut{Trigger: "brb", Replacement: "x"}, false},
		{"bad language", Shortcut{Trigger: "brb", Replacement: "x", Language: "not a tag"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.sc.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidShortcut)
		})
	}
}

func TestConflicts(t *testing.T) {
	insensitive := Shortcut{Trigger: "api", Language: "en"}
	upper := Shortcut{Trigger: "API", Language: "en", CaseSensitive: true}
	mixed := Shortcut{Trigger: "Api", Language: "en", CaseSensitive: true}

	assert.True(t, insensitive.Conflicts(upper))
	assert.True(t, upper.Conflicts(insensitive))
	assert.False(t, upper.Conflicts(mixed))
	assert.True(t, upper.Conflicts(upper))

	other := insensitive
	other.Language = "fr"
	assert.False(t, insensitive.Conflicts(other))
}

func TestResolve(t *testing.T) {
	r := newRepo(t)
	mustAdd(t, r, Shortcut{Trigger: "dont", Replacement: "don't", Language: "en"})
	mustAdd(t, r, Shortcut{Trigger: "API", Replacement: "application programming interface", Language: "en", CaseSensitive: true})
	mustAdd(t, r, Shortcut{Trigger: "ist", Replacement: "istanbul", Language: "tr"})

	repl, cs, ok := r.Resolve("en", "DONT")
	assert.True(t, ok)
	assert.False(t, cs)
	assert.Equal(t, "don't", repl)

	repl, cs, ok = r.Resolve("en", "API")
	assert.True(t, ok)
	assert.True(t, cs)
	assert.Equal(t, "application programming interface", repl)

	_, _, ok = r.Resolve("en", "api")
	assert.False(t, ok, "case-sensitive trigger must match exactly")

	_, _, ok = r.Resolve("en", "ist")
	assert.False(t, ok, "shortcuts are scoped to their language")
	_, _, ok = r.Resolve("tr", "İST")
	assert.False(t, ok, "dotted capital I does not fold to plain i")
	_, _, ok = r.Resolve("tr", "IST")
	assert.True(t, ok)

	_, _, ok = r.Resolve("en", "")
	assert.False(t, ok)

	var nilRepo *Repository
	_, _, ok = nilRepo.Resolve("en", "dont")
	assert.False(t, ok)
}

func TestAddRejectsDuplicates(t *testing.T) {
	r := newRepo(t)
	mustAdd(t, r, Shortcut{Trigger: "brb", Replacement: "be right back", Language: "en"})

	_, err := r.Add(Shortcut{Trigger: "BRB", Replacement: "x", Language: "en"})
	assert.ErrorIs(t, err, ErrDuplicateTrigger)

	_, err = r.Add(Shortcut{Trigger: "BRB", Replacement: "x", Language: "en", CaseSensitive: true})
	assert.ErrorIs(t, err, ErrDuplicateTrigger)

	_, err = r.Add(Shortcut{Trigger: "brb", Replacement: "bis bald", Language: "de"})
	assert.NoError(t, err)

	mustAdd(t, r, Shortcut{Trigger: "API", Replacement: "a", Language: "en", CaseSensitive: true})
	mustAdd(t, r, Shortcut{Trigger: "Api", Replacement: "b", Language: "en", CaseSensitive: true})
	assert.Equal(t, 4, r.Len())
}

func TestAddInvalid(t *testing.T) {
	r := newRepo(t)
	_, err := r.Add(Shortcut{Trigger: "", Replacement: "x", Language: "en"})
	assert.ErrorIs(t, err, ErrInvalidShortcut)
	assert.Zero(t, r.Len())
}

func TestUpdateAndDelete(t *testing.T) {
	r := newRepo(t)
	brb := mustAdd(t, r, Shortcut{Trigger: "brb", Replacement: "be right back", Language: "en"})
	omw := mustAdd(t, r, Shortcut{Trigger: "omw", Replacement: "on my way", Language: "en"})
	assert.NotEqual(t, brb.ID, omw.ID)

	brb.Replacement = "be right back!"
	require.NoError(t, r.Update(brb))
	repl, _, _ := r.Resolve("en", "brb")
	assert.Equal(t, "be right back!", repl)

	got, err := r.Get(brb.ID)
	require.NoError(t, err)
	assert.Equal(t, brb, got)

	clash := omw
	clash.Trigger = "BRB"
	assert.ErrorIs(t, r.Update(clash), ErrDuplicateTrigger)

	assert.ErrorIs(t, r.Update(Shortcut{ID: 99, Trigger: "x", Replacement: "y", Language: "en"}), ErrNotFound)

	require.NoError(t, r.Delete(brb.ID))
	_, _, ok := r.Resolve("en", "brb")
	assert.False(t, ok)
	assert.ErrorIs(t, r.Delete(brb.ID), ErrNotFound)
	_, err = r.Get(brb.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdering(t *testing.T) {
	r := newRepo(t)
	mustAdd(t, r, Shortcut{Trigger: "zz", Replacement: "z", Language: "en"})
	mustAdd(t, r, Shortcut{Trigger: "Aa", Replacement: "a", Language: "en"})
	mustAdd(t, r, Shortcut{Trigger: "mm", Replacement: "m", Language: "de"})

	var triggers []string
	for _, sc := range r.List("") {
		triggers = append(triggers, sc.Language+"/"+sc.Trigger)
	}
	assert.Equal(t, []string{"de/mm", "en/Aa", "en/zz"}, triggers)
	assert.Len(t, r.List("en"), 2)
	assert.Empty(t, r.List("fr"))
	assert.Equal(t, []string{"de", "en"}, r.Languages())
}

func TestInitializeDefaults(t *testing.T) {
	storage := NewMemoryStorage()
	r, err := NewRepository(storage, nil)
	require.NoError(t, err)

	n, err := r.InitializeDefaults()
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.Equal(t, n, r.Len())

	repl, _, ok := r.Resolve("en", "Teh")
	assert.True(t, ok)
	assert.Equal(t, "the", repl)

	n, err = r.InitializeDefaults()
	require.NoError(t, err)
	assert.Zero(t, n)

	// Defaults are seeded once; a deleted default stays deleted.
	en := r.List("en")
	require.NotEmpty(t, en)
	require.NoError(t, r.Delete(en[0].ID))
	n, err = r.InitializeDefaults()
	require.NoError(t, err)
	assert.Zero(t, n)

	reloaded, err := NewRepository(storage, nil)
	require.NoError(t, err)
	assert.Equal(t, r.Len(), reloaded.Len())
}

func TestInitializeDefaultsSkipsWhenUserShortcutsExist(t *testing.T) {
	r := newRepo(t)
	mustAdd(t, r, Shortcut{Trigger: "brb", Replacement: "be right back", Language: "en"})

	n, err := r.InitializeDefaults()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, r.Len())
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newRepo(t)
	mustAdd(t, src, Shortcut{Trigger: "brb", Replacement: "be right back", Language: "en"})
	mustAdd(t, src, Shortcut{Trigger: "API", Replacement: "application programming interface", Language: "en", CaseSensitive: true})
	mustAdd(t, src, Shortcut{Trigger: "qqch", Replacement: "quelque chose", Language: "fr"})

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf, "en"))
	require.NoError(t, schemavalidation.ValidateShortcuts(buf.Bytes()))
	assert.NotContains(t, buf.String(), `"id"`)

	dst := newRepo(t)
	res, err := dst.Import(bytes.NewReader(buf.Bytes()), ImportSkipExisting)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Added: 2}, res)

	repl, cs, ok := dst.Resolve("en", "API")
	assert.True(t, ok)
	assert.True(t, cs)
	assert.Equal(t, "application programming interface", repl)
	_, _, ok = dst.Resolve("fr", "qqch")
	assert.False(t, ok, "only en was exported")

	res, err = dst.Import(bytes.NewReader(buf.Bytes()), ImportSkipExisting)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Skipped: 2}, res)
	assert.Equal(t, 2, dst.Len())
}

func TestImportReplaceExisting(t *testing.T) {
	r := newRepo(t)
	brb := mustAdd(t, r, Shortcut{Trigger: "brb", Replacement: "be right back", Language: "en"})

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, []Shortcut{
		{Trigger: "BRB", Replacement: "be right back soon", Language: "en"},
		{Trigger: "omw", Replacement: "on my way", Language: "en"},
	}, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)))
	assert.Contains(t, buf.String(), `"exported_at": "2026-03-01T09:30:00Z"`)

	res, err := r.Import(&buf, ImportReplaceExisting)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Added: 1, Replaced: 1}, res)

	got, err := r.Get(brb.ID)
	require.NoError(t, err)
	assert.Equal(t, "BRB", got.Trigger)
	assert.Equal(t, "be right back soon", got.Replacement)
}

func TestImportRejectsInvalidDocument(t *testing.T) {
	r := newRepo(t)

	doc := map[string]any{
		"version": 1,
		"shortcuts": []map[string]any{
			{"trigger": "ok", "replacement": "fine", "language": "en"},
			{"trigger": "not ok", "replacement": "x", "language": "en"},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	_, err = r.Import(bytes.NewReader(data), ImportSkipExisting)
	var ve *schemavalidation.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "/shortcuts/1/trigger")
	assert.Zero(t, r.Len(), "nothing is stored from an invalid document")

	_, err = r.Import(strings.NewReader("not json"), ImportSkipExisting)
	assert.Error(t, err)
}

type failingStorage struct {
	*MemoryStorage
}

var errDiskFull = errors.New("disk full")

func (failingStorage) InsertShortcut(*Shortcut) (int64, error) {
	return 0, errDiskFull
}

func TestStorageErrorLeavesCacheUnchanged(t *testing.T) {
	r, err := NewRepository(failingStorage{NewMemoryStorage()}, nil)
	require.NoError(t, err)

	_, err = r.Add(Shortcut{Trigger: "brb", Replacement: "be right back", Language: "en"})
	assert.ErrorIs(t, err, errDiskFull)
	assert.Zero(t, r.Len())
	_, _, ok := r.Resolve("en", "brb")
	assert.False(t, ok)
}

func TestRepositoryDrivesEngine(t *testing.T) {
	r := newRepo(t)
	_, err := r.InitializeDefaults()
	require.NoError(t, err)

	engine := ime.NewEngine(r, nil, config.DefaultKeyboardSettings())
	s := ime.NewBufferSurface("")
	engine.StartInput(nil)

	at := int64(1000)
	for _, ch := range "so dont " {
		code := ime.KeySpace
		if ch != ' ' {
			var ok bool
			code, ok = ime.LetterKey(ch)
			require.True(t, ok)
		}
		ev := ime.KeyEvent{Code: code, DownTime: at, EventTime: at}
		if res, _ := engine.KeyDown(s, ev); res == ime.NotHandled {
			s.ApplyDefault(code, false)
		}
		ev.EventTime = at + 20
		engine.KeyUp(s, ev)
		at += 100
	}
	assert.Equal(t, "so don't ", s.Text())
}
