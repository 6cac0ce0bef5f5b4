package gate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/idilsaglam/tracker/internal/gate"
)

func TestGate_WaitersIssuedBeforeReadyAllSucceed(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	gt := gate.New[int]()
	release := make(chan struct{})
	gt.Open(context.Background(), func(context.Context) (int, error) {
		<-release
		return 42, nil
	})
	g.Expect(gt.State()).Should(Equal(gate.Opening))

	const waiters = 16
	results := make(chan int, waiters)
	var wg sync.WaitGroup
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := gt.Wait(context.Background())
			if err == nil {
				results <- v
			}
		}()
	}

	close(release)
	wg.Wait()
	close(results)

	got := 0
	for v := range results {
		g.Expect(v).Should(Equal(42))
		got++
	}
	g.Expect(got).Should(Equal(waiters))
	g.Expect(gt.State()).Should(Equal(gate.Ready))
}

func TestGate_FailedShortCircuitsWaiters(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cause := errors.New("disk full")
	gt := gate.New[string]()
	gt.Open(context.Background(), func(context.Context) (string, error) { return "", cause })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := gt.Wait(ctx)
	g.Expect(err).Should(MatchError(gate.ErrFailed))
	g.Expect(errors.Is(err, cause)).Should(BeTrue())
	g.Expect(gt.State()).Should(Equal(gate.Failed))

	_, err = gt.TryGet()
	g.Expect(err).Should(MatchError(gate.ErrFailed))
}

func TestGate_SettlesExactlyOnce(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	gt := gate.New[int]()
	g.Expect(gt.Resolve(1)).Should(BeTrue())
	g.Expect(gt.Resolve(2)).Should(BeFalse())
	g.Expect(gt.Reject(errors.New("late"))).Should(BeFalse())

	v, err := gt.TryGet()
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(v).Should(Equal(1))
}

func TestGate_TryGetWhileOpening(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	gt := gate.New[int]()
	_, err := gt.TryGet()
	g.Expect(err).Should(MatchError(gate.ErrOpening))
}

func TestGate_WaitHonorsContext(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	gt := gate.New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gt.Wait(ctx)
	g.Expect(err).Should(MatchError(context.Canceled))
	g.Expect(gt.State()).Should(Equal(gate.Opening))
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    gate.State
		want string
	}{
		{gate.Opening, "opening"},
		{gate.Ready, "ready"},
		{gate.Failed, "failed"},
		{gate.State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
