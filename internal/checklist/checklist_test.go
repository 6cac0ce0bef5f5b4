package checklist_test

import (
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/idilsaglam/tracker/internal/checklist"
	"github.com/idilsaglam/tracker/internal/model"
)

func items(ids ...string) []model.Item {
	out := make([]model.Item, len(ids))
	for i, id := range ids {
		out[i] = model.Item{ID: id, Title: id}
	}
	return out
}

func TestNew_RendersUncheckedControls(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	c := checklist.New("", items("a", "b", "a"))
	g.Expect(c.Prefix()).Should(Equal(checklist.DefaultPrefix))
	g.Expect(c.IDs()).Should(Equal([]string{"a", "b"}))
	g.Expect(c.CheckedCount()).Should(BeZero())

	ctls := c.Controls()
	g.Expect(ctls[0].ElementID).Should(Equal("problem-a"))
	g.Expect(ctls[0].Checked).Should(BeFalse())
}

func TestItemID_ParsesPrefixedIdentifiers(t *testing.T) {
	t.Parallel()

	c := checklist.New("problem", nil)
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"problem-two-sum", "two-sum", true},
		{"problem-", "", false},
		{"task-two-sum", "", false},
		{"two-sum", "", false},
	}
	for _, tt := range tests {
		got, ok := c.ItemID(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ItemID(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
		if tt.wantOK && c.ElementID(got) != tt.in {
			t.Errorf("ElementID(%q) = %q; want %q", got, c.ElementID(got), tt.in)
		}
	}
}

func TestSet_AppliesCompletedClass(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	c := checklist.New("problem", items("a", "b"))
	g.Expect(c.Set("a", true)).Should(BeTrue())
	g.Expect(c.Set("zzz", true)).Should(BeFalse())

	checked, ok := c.Checked("a")
	g.Expect(ok).Should(BeTrue())
	g.Expect(checked).Should(BeTrue())
	g.Expect(c.Controls()[0].Completed).Should(BeTrue())
	g.Expect(c.CheckedCount()).Should(Equal(1))

	c.Set("a", false)
	g.Expect(c.Controls()[0].Completed).Should(BeFalse())
}

func TestReplace_KeepsStateOfRetainedItems(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	c := checklist.New("problem", items("a", "b"))
	c.Set("a", true)
	c.Set("b", true)

	c.Replace(items("a", "c"))
	g.Expect(c.IDs()).Should(Equal([]string{"a", "c"}))
	g.Expect(c.Has("b")).Should(BeFalse())
	g.Expect(c.CheckedCount()).Should(Equal(1))
}

func TestRecords_ReflectsUIState(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	c := checklist.New("problem", items("a", "b"))
	c.Set("b", true)

	g.Expect(c.Records(5)).Should(Equal([]model.Record{
		{ID: "a", Completed: false, Timestamp: 5},
		{ID: "b", Completed: true, Timestamp: 5},
	}))
}
