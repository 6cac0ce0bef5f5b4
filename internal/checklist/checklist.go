// Package checklist is the in-memory state of the rendered checklist: one
// checkbox control per catalog item, identified as "<prefix>-<id>", sitting in
// a row that carries a "completed" marker. Renderers read snapshots of it; the
// synchronizer writes to it. It is not authoritative; the store is.
package checklist

import (
	"strings"
	"sync"

	"github.com/idilsaglam/tracker/internal/model"
)

// DefaultPrefix is the control identifier prefix used when none is configured.
const DefaultPrefix = "problem"

// Control is a snapshot of one rendered checkbox and its row.
type Control struct {
	Item      model.Item
	ElementID string
	Checked   bool
	// Completed mirrors the row's "completed" visual class.
	Completed bool
}

type control struct {
	item      model.Item
	checked   bool
	completed bool
}

// Checklist is safe for concurrent use.
type Checklist struct {
	mu       sync.RWMutex
	prefix   string
	controls []*control
	byID     map[string]*control
}

// New renders items as unchecked controls.
func New(prefix string, items []model.Item) *Checklist {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	c := &Checklist{prefix: prefix}
	c.reset(items, nil)
	return c
}

func (c *Checklist) reset(items []model.Item, keep map[string]*control) {
	c.controls = make([]*control, 0, len(items))
	c.byID = make(map[string]*control, len(items))
	for _, it := range items {
		if _, dup := c.byID[it.ID]; dup {
			continue
		}
		ctl := &control{item: it}
		if old, ok := keep[it.ID]; ok {
			ctl.checked, ctl.completed = old.checked, old.completed
		}
		c.controls = append(c.controls, ctl)
		c.byID[it.ID] = ctl
	}
}

// Replace swaps the rendered items. Items that stay keep their state.
func (c *Checklist) Replace(items []model.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset(items, c.byID)
}

// Prefix returns the control identifier prefix.
func (c *Checklist) Prefix() string { return c.prefix }

// ElementID returns the control identifier for an item id.
func (c *Checklist) ElementID(id string) string { return c.prefix + "-" + id }

// ItemID strips the prefix from a control identifier.
func (c *Checklist) ItemID(elementID string) (string, bool) {
	id, ok := strings.CutPrefix(elementID, c.prefix+"-")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Len is the number of rendered controls.
func (c *Checklist) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.controls)
}

// IDs returns the item ids in render order.
func (c *Checklist) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, len(c.controls))
	for i, ctl := range c.controls {
		ids[i] = ctl.item.ID
	}
	return ids
}

// Has reports whether id is rendered.
func (c *Checklist) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byID[id]
	return ok
}

// Checked returns the checked state of id; ok is false when id is not rendered.
func (c *Checklist) Checked(id string) (checked, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctl, ok := c.byID[id]
	if !ok {
		return false, false
	}
	return ctl.checked, true
}

// Set marks id checked or unchecked and applies or removes the row's
// completed class. It reports false when id is not rendered.
func (c *Checklist) Set(id string, checked bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctl, ok := c.byID[id]
	if !ok {
		return false
	}
	ctl.checked, ctl.completed = checked, checked
	return true
}

// CheckedCount counts checked controls.
func (c *Checklist) CheckedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, ctl := range c.controls {
		if ctl.checked {
			n++
		}
	}
	return n
}

// Controls returns a snapshot in render order.
func (c *Checklist) Controls() []Control {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Control, len(c.controls))
	for i, ctl := range c.controls {
		out[i] = Control{
			Item:      ctl.item,
			ElementID: c.ElementID(ctl.item.ID),
			Checked:   ctl.checked,
			Completed: ctl.completed,
		}
	}
	return out
}

// Records returns the UI-derived truth for every rendered control, stamped with at (epoch millis).
func (c *Checklist) Records(at int64) []model.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Record, len(c.controls))
	for i, ctl := range c.controls {
		out[i] = model.Record{ID: ctl.item.ID, Completed: ctl.checked, Timestamp: at}
	}
	return out
}
