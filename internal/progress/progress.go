// Package progress aggregates completion counts and renders them into a
// textual summary and a proportional fill.
package progress

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/idilsaglam/tracker/internal/checklist"
)

// Stats is a completion summary.
type Stats struct {
	Completed int
	Total     int
	Percent   int
}

// Compute builds Stats; Percent is round(100*completed/total), 0 when total is 0,
// and never above 100.
func Compute(completed, total int) Stats {
	s := Stats{Completed: completed, Total: total}
	if total > 0 {
		s.Percent = int(math.Round(100 * float64(completed) / float64(total)))
	}
	s.Percent = min(max(s.Percent, 0), 100)
	return s
}

// Format renders the summary line, e.g. "3/10 problems completed (30%)".
func (s Stats) Format(noun string) string {
	return fmt.Sprintf("%d/%d %s completed (%d%%)", s.Completed, s.Total, noun, s.Percent)
}

// FromUI counts checked controls out of all rendered controls.
func FromUI(c *checklist.Checklist) Stats {
	return Compute(c.CheckedCount(), c.Len())
}

// Counter is the part of the store used for store-derived stats.
type Counter interface {
	CountWhere(ctx context.Context, completed bool) (int, error)
}

// FromStore counts completed records through the store's index against the
// rendered total.
func FromStore(ctx context.Context, s Counter, total int) (Stats, error) {
	n, err := s.CountWhere(ctx, true)
	if err != nil {
		return Stats{}, fmt.Errorf("count completed: %w", err)
	}
	return Compute(n, total), nil
}

// Display receives the textual summary.
type Display interface{ SetText(text string) }

// Fill receives the fill percentage.
type Fill interface{ SetPercent(percent int) }

// Aggregator renders Stats into optional targets. A nil target is skipped.
type Aggregator struct {
	display Display
	fill    Fill
	noun    string

	mu   sync.Mutex
	last Stats
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithNoun sets the noun of the summary line. Default: "problems".
func WithNoun(noun string) Option { return func(a *Aggregator) { a.noun = noun } }

// New returns an Aggregator rendering into display and fill, either of which may be nil.
func New(display Display, fill Fill, opts ...Option) *Aggregator {
	a := &Aggregator{display: display, fill: fill, noun: "problems"}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Render pushes s into the targets.
func (a *Aggregator) Render(s Stats) {
	a.mu.Lock()
	a.last = s
	a.mu.Unlock()

	if a.display != nil {
		a.display.SetText(s.Format(a.noun))
	}
	if a.fill != nil {
		a.fill.SetPercent(s.Percent)
	}
}

// RenderUI computes from UI state and renders it.
func (a *Aggregator) RenderUI(c *checklist.Checklist) Stats {
	s := FromUI(c)
	a.Render(s)
	return s
}

// Last returns the most recently rendered Stats.
func (a *Aggregator) Last() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Latch is a Display and Fill that keeps the latest values for a renderer to read.
type Latch struct {
	mu      sync.Mutex
	text    string
	percent int
}

func (l *Latch) SetText(text string) {
	l.mu.Lock()
	l.text = text
	l.mu.Unlock()
}

func (l *Latch) SetPercent(percent int) {
	l.mu.Lock()
	l.percent = percent
	l.mu.Unlock()
}

// Values returns the latest text and percentage.
func (l *Latch) Values() (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text, l.percent
}
