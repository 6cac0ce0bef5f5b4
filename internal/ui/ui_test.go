package ui

import (
	"bytes"
	"strings"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers
)

func withMono(t *testing.T) (out, errOut *bytes.Buffer) {
	t.Helper()
	oldTheme, oldOut, oldErr := current, Out, ErrOut
	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	SetTheme("mono")
	Out, ErrOut = out, errOut
	t.Cleanup(func() { current, Out, ErrOut = oldTheme, oldOut, oldErr })
	return out, errOut
}

func TestProgressBar(t *testing.T) {
	g := NewWithT(t)
	withMono(t)

	tests := []struct {
		percent, width int
		want           string
	}{
		{0, 10, "----------   0%"},
		{50, 10, "#####-----  50%"},
		{100, 10, "########## 100%"},
		{150, 10, "########## 100%"},
		{-5, 10, "----------   0%"},
		{40, 2, "##---  40%"},
	}
	for _, tt := range tests {
		g.Expect(ProgressBar(tt.percent, tt.width)).Should(Equal(tt.want), "percent=%d width=%d", tt.percent, tt.width)
	}
}

func TestSetTheme_UnknownFallsBackToClassic(t *testing.T) {
	g := NewWithT(t)
	withMono(t)

	SetTheme("pink")
	g.Expect(Current().Name).Should(Equal("classic"))
	SetTheme("NEON")
	g.Expect(Current().Name).Should(Equal("neon"))
	g.Expect(Themes()).Should(ConsistOf("classic", "neon", "mono"))
}

func TestConsole_RoutesByLevel(t *testing.T) {
	g := NewWithT(t)
	out, errOut := withMono(t)

	c := &Console{}
	c.Notify(LevelInfo, "loaded")
	c.Notify(LevelWarn, "progress cannot be saved")
	c.Notify(LevelError, "could not save a")

	g.Expect(out.String()).Should(ContainSubstring("loaded"))
	g.Expect(errOut.String()).Should(ContainSubstring("progress cannot be saved"))
	g.Expect(errOut.String()).Should(ContainSubstring("could not save a"))
	g.Expect(LevelWarn.String()).Should(Equal("warn"))
}

func TestPanel_FramesLines(t *testing.T) {
	g := NewWithT(t)
	out, _ := withMono(t)

	Panel([]string{"one", "two"})
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	g.Expect(lines).Should(HaveLen(4))
	g.Expect(lines[1]).Should(ContainSubstring("one"))
	g.Expect(lines[2]).Should(ContainSubstring("two"))
}

func TestDiscard(t *testing.T) {
	g := NewWithT(t)
	var got []string
	n := NotifierFunc(func(l Level, msg string) { got = append(got, l.String()+":"+msg) })
	n.Notify(LevelError, "x")
	Discard.Notify(LevelError, "y")
	g.Expect(got).Should(Equal([]string{"error:x"}))
}
