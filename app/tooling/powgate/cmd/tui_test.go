package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zephyr/powgate/foundation/pow"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func TestModel(t *testing.T) {
	t.Log("Given the need to drive the interactive view from flow messages.")
	{
		m := newModel(context.Background(), nil)
		defer m.cancel()

		var tm tea.Model = m
		tm, _ = tm.Update(startedMsg{})
		tm, _ = tm.Update(estimatesMsg(pow.Estimates(1000, []int{3, 4})))

		got := tm.(model)
		if got.view != chooseView {
			t.Fatalf("\t%s\tShould show the difficulty choice : got %d", failed, got.view)
		}
		t.Logf("\t%s\tShould show the difficulty choice.", success)

		tm, _ = tm.Update(tea.KeyMsg{Type: tea.KeyDown})
		if tm.(model).cursor != 1 {
			t.Fatalf("\t%s\tShould move the cursor down : got %d", failed, tm.(model).cursor)
		}
		tm, _ = tm.Update(tea.KeyMsg{Type: tea.KeyDown})
		if tm.(model).cursor != 1 {
			t.Fatalf("\t%s\tShould stop at the last tier : got %d", failed, tm.(model).cursor)
		}
		t.Logf("\t%s\tShould move the cursor within the tiers.", success)

		view := tm.View()
		if !strings.Contains(view, "Difficulty 4") {
			t.Fatalf("\t%s\tShould render each tier : %q", failed, view)
		}
		t.Logf("\t%s\tShould render each tier.", success)

		tm, _ = tm.Update(failedMsg{err: errors.New("bad nonce"), retryable: true})
		tm, _ = tm.Update(runDoneMsg{err: errors.New("bad nonce")})
		got = tm.(model)
		if got.view != chooseView || !strings.Contains(got.failure, "bad nonce") {
			t.Fatalf("\t%s\tShould return to the choice after a failure : view %d failure %q", failed, got.view, got.failure)
		}
		t.Logf("\t%s\tShould return to the choice after a failure.", success)

		tm, _ = tm.Update(progressMsg(pow.Progress{Hashes: 42, Elapsed: time.Second}))
		tm, _ = tm.Update(documentMsg("<html>\n<title>Access Granted</title>\n</html>"))
		tm, _ = tm.Update(runDoneMsg{})
		got = tm.(model)
		if got.view != grantedView || got.progress.Hashes != 42 {
			t.Fatalf("\t%s\tShould show the granted view : view %d hashes %d", failed, got.view, got.progress.Hashes)
		}
		if !strings.Contains(got.View(), "Access Granted") {
			t.Fatalf("\t%s\tShould show the protected document.", failed)
		}
		t.Logf("\t%s\tShould show the granted view and document.", success)
	}
}

func TestTrimDocument(t *testing.T) {
	t.Log("Given the need to bound the document shown in the terminal.")
	{
		doc := strings.Repeat("line\n", maxDocLines*2)
		got := strings.Split(trimDocument(doc), "\n")
		if len(got) != maxDocLines+1 || got[maxDocLines] != "..." {
			t.Fatalf("\t%s\tShould cut the document at %d lines : got %d", failed, maxDocLines, len(got))
		}
		t.Logf("\t%s\tShould cut the document at %d lines.", success, maxDocLines)
	}
}

func TestConsole(t *testing.T) {
	t.Log("Given the need to present the flow as plain text.")
	{
		var buf bytes.Buffer
		con := newConsole(&buf)

		con.Estimates(pow.Estimates(1000, []int{3}))
		con.Progress(pow.Progress{Hashes: 10, HashesPerSecond: 2000, Elapsed: time.Second, EstimatedTotal: 2, Final: true})
		con.Solved(pow.Solution{Nonce: 9, ProcessingTime: 1, HashRateKps: 2})
		con.Failed(errors.New("boom"), true)

		out := buf.String()
		for _, want := range []string{"~4s", "2.00 kH/s", "nonce 9", "boom", "retry"} {
			if !strings.Contains(out, want) {
				t.Fatalf("\t%s\tShould contain %q : %q", failed, want, out)
			}
		}
		t.Logf("\t%s\tShould render estimates, progress, solution and failure.", success)
	}
}
