package ime

// AccentTable returns the accent cycle for a base letter: the letter
// itself followed by its variants, or nil when it has none.
type AccentTable interface {
	Lookup(language string, base rune) []string
}

// AccentSession tracks one held letter key that has accent variants.
type AccentSession struct {
	Code     KeyCode
	Base     rune
	Variants []string
	Start    int64
	Index    int
}

func newAccentSession(code KeyCode, base rune, variants []string, start int64) *AccentSession {
	return &AccentSession{
		Code:     code,
		Base:     base,
		Variants: variants,
		Start:    start,
	}
}

// indexAt returns the variant index shown at eventTime: the base letter
// until the start delay passes, then one step per interval, wrapping.
func (a *AccentSession) indexAt(eventTime int64) int {
	elapsed := eventTime - a.Start
	if elapsed < accentStartMs || len(a.Variants) == 0 {
		return a.Index
	}
	steps := (elapsed-accentStartMs)/accentIntervalMs + 1
	return int(steps % int64(len(a.Variants)))
}

// advance moves the session to eventTime. It returns the variant to show
// and true when the index changed.
func (a *AccentSession) advance(eventTime int64) (string, bool) {
	next := a.indexAt(eventTime)
	if next == a.Index {
		return "", false
	}
	a.Index = next
	return a.Variants[next], true
}
