package progress_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/idilsaglam/tracker/internal/checklist"
	"github.com/idilsaglam/tracker/internal/model"
	"github.com/idilsaglam/tracker/internal/progress"
)

func TestCompute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		completed, total int
		want             int
	}{
		{0, 0, 0},
		{0, 10, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{10, 10, 100},
		{12, 10, 100},
	}
	for _, tt := range tests {
		if got := progress.Compute(tt.completed, tt.total).Percent; got != tt.want {
			t.Errorf("Compute(%d, %d).Percent = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}

func TestFromUI_NoItemsIsZeroPercent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	s := progress.FromUI(checklist.New("problem", nil))
	g.Expect(s).Should(Equal(progress.Stats{}))
}

func TestFromUI_CountsCheckedControls(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	c := checklist.New("problem", []model.Item{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}})
	c.Set("a", true)

	g.Expect(progress.FromUI(c)).Should(Equal(progress.Stats{Completed: 1, Total: 4, Percent: 25}))
}

type countFunc func(bool) (int, error)

func (f countFunc) CountWhere(_ context.Context, completed bool) (int, error) { return f(completed) }

func TestFromStore(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	s, err := progress.FromStore(context.Background(), countFunc(func(c bool) (int, error) {
		g.Expect(c).Should(BeTrue())
		return 3, nil
	}), 4)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(s.Percent).Should(Equal(75))

	_, err = progress.FromStore(context.Background(), countFunc(func(bool) (int, error) {
		return 0, errors.New("locked")
	}), 4)
	g.Expect(err).Should(MatchError(ContainSubstring("locked")))
}

func TestRender_WritesTargets(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	latch := &progress.Latch{}
	agg := progress.New(latch, latch)
	agg.Render(progress.Compute(3, 10))

	text, pct := latch.Values()
	g.Expect(text).Should(Equal("3/10 problems completed (30%)"))
	g.Expect(pct).Should(Equal(30))
	g.Expect(agg.Last().Completed).Should(Equal(3))
}

func TestRender_MissingTargetsAreNoOps(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	agg := progress.New(nil, nil, progress.WithNoun("items"))
	g.Expect(func() { agg.Render(progress.Compute(1, 2)) }).ShouldNot(Panic())
	g.Expect(agg.Last().Format("items")).Should(Equal("1/2 items completed (50%)"))
}
