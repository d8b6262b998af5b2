// Package supervisor – guard.go suppresses duplicate and repeated
// interventions: fingerprint dedup, per-content repetition caps, echo
// detection, and near-duplicate similarity against the last dialog
// text.
package supervisor

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Fingerprint returns the dedup key for snapshot text: lower-cased,
// all whitespace stripped, hashed.
func Fingerprint(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	h := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", h[:8])
}

// processedSet is a bounded fingerprint set with insertion order; on
// overflow the oldest half is evicted.
type processedSet struct {
	set   map[string]struct{}
	order []string
	cap   int
}

func newProcessedSet(cap int) *processedSet {
	return &processedSet{
		set: make(map[string]struct{}, cap),
		cap: cap,
	}
}

func (p *processedSet) Has(fp string) bool {
	_, ok := p.set[fp]
	return ok
}

func (p *processedSet) Add(fp string) {
	if p.Has(fp) {
		return
	}
	p.set[fp] = struct{}{}
	p.order = append(p.order, fp)
	if len(p.order) > p.cap {
		drop := p.order[:len(p.order)-p.cap/2]
		for _, old := range drop {
			delete(p.set, old)
		}
		p.order = p.order[len(drop):]
	}
}

func (p *processedSet) Clear() {
	p.set = make(map[string]struct{}, p.cap)
	p.order = p.order[:0]
}

// repetitionCounter maps raw text to occurrence count, bounded by
// evicting the least recently seen entries.
type repetitionCounter struct {
	counts map[string]int
	order  []string
	cap    int
	keep   int
}

func newRepetitionCounter(cap, keep int) *repetitionCounter {
	return &repetitionCounter{
		counts: make(map[string]int, cap),
		cap:    cap,
		keep:   keep,
	}
}

// Bump increments and returns the count for text, trimming to the most
// recent keep entries once the map exceeds cap.
func (r *repetitionCounter) Bump(text string) int {
	if _, ok := r.counts[text]; !ok {
		r.order = append(r.order, text)
	} else {
		// Move to the back so trimming keeps the most recent.
		for i, t := range r.order {
			if t == text {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		r.order = append(r.order, text)
	}
	r.counts[text]++

	if len(r.counts) > r.cap {
		drop := r.order[:len(r.order)-r.keep]
		for _, old := range drop {
			delete(r.counts, old)
		}
		r.order = r.order[len(drop):]
	}
	return r.counts[text]
}

func (r *repetitionCounter) Clear() {
	r.counts = make(map[string]int, r.cap)
	r.order = r.order[:0]
}

// Guard gates intervention dispatch. Checks run in a fixed order and
// the first hit wins; the returned reason names the check for logs.
type Guard struct {
	cfg        Config
	processed  *processedSet
	repetition *repetitionCounter
}

// NewGuard creates a guard with empty suppression state.
func NewGuard(cfg Config) *Guard {
	return &Guard{
		cfg:        cfg,
		processed:  newProcessedSet(cfg.ProcessedCap),
		repetition: newRepetitionCounter(cfg.RepetitionCap, cfg.RepetitionKeep),
	}
}

// ShouldSuppress reports whether the current snapshot must not trigger
// an intervention, and why. lastDialog is the last recorded dialog text
// from the stability tracker. The repetition counter is bumped on every
// call, including suppressed ones.
func (g *Guard) ShouldSuppress(text string, now time.Time, st *State, lastDialog string) (bool, string) {
	if st.InFlight {
		return true, "dispatch in flight"
	}
	if !st.LastInterventionAt.IsZero() && now.Sub(st.LastInterventionAt) < g.cfg.Cooldown {
		return true, "cooldown"
	}
	if g.processed.Has(Fingerprint(text)) {
		return true, "fingerprint already processed"
	}
	if g.repetition.Bump(text) > g.cfg.MaxSameContent {
		return true, "repetition cap"
	}
	if len(st.LastInstruction) > g.cfg.EchoMinLen && strings.Contains(text, st.LastInstruction) {
		return true, "echo of last instruction"
	}
	// Only meaningful once something has been processed: before the
	// first intervention, unchanged content trivially matches itself
	// and must not be suppressed here.
	if st.LastFingerprint != "" && lastDialog != "" &&
		positionalSimilarity(text, lastDialog) > g.cfg.DuplicateSimilarity {
		return true, "near-duplicate of last dialog text"
	}
	return false, ""
}

// MarkProcessed records text as acted upon.
func (g *Guard) MarkProcessed(text string) {
	g.processed.Add(Fingerprint(text))
}

// ResetSuppression clears the processed set and repetition counter.
// Called by the escalation valve when forcing progress.
func (g *Guard) ResetSuppression() {
	g.processed.Clear()
	g.repetition.Clear()
}

// IsSubstantiallySame reports whether text and lastDialog are the same
// content modulo OCR drift: equal after normalization, highly similar,
// or one contained in the other for sufficiently long strings.
func (g *Guard) IsSubstantiallySame(text, lastDialog string) bool {
	if text == "" || lastDialog == "" {
		return false
	}
	a := normalizeComparable(text)
	b := normalizeComparable(lastDialog)
	if a == b {
		return true
	}
	if positionalSimilarity(a, b) > g.cfg.SameContentSimilarity {
		return true
	}
	if min(len(a), len(b)) > g.cfg.ContainmentMinLen {
		if strings.Contains(a, b) || strings.Contains(b, a) {
			return true
		}
	}
	return false
}

// positionalSimilarity counts positionally equal bytes divided by the
// longer length. A cheap proxy, not an edit distance: shifted or
// inserted text scores low even when semantically identical. Good
// enough as a duplicate filter, documented as an approximation.
func positionalSimilarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := min(len(a), len(b))
	match := 0
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			match++
		}
	}
	return float64(match) / float64(max(len(a), len(b)))
}

// normalizeComparable lowers the text and strips everything except
// letters and digits (CJK included), so punctuation-level OCR drift
// does not defeat comparison.
func normalizeComparable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
