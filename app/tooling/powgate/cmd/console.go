package cmd

import (
	"fmt"
	"io"

	"github.com/zephyr/powgate/foundation/pow"
)

// console presents the flow as plain lines of text.
type console struct {
	w io.Writer
}

func newConsole(w io.Writer) *console {
	return &console{w: w}
}

func (c *console) Estimates(ests []pow.Estimate) {
	fmt.Fprintln(c.w, "Difficulty  Estimated time")
	for _, est := range ests {
		fmt.Fprintf(c.w, "%-10d  %s\n", est.Difficulty, est)
	}
}

func (c *console) Progress(p pow.Progress) {
	fmt.Fprintf(c.w, "\rHashes: %d  Rate: %s  Elapsed: %s  Estimated: %s   ",
		p.Hashes,
		pow.FormatRate(p.HashesPerSecond),
		pow.FormatElapsed(p.Elapsed.Seconds()),
		pow.FormatTime(p.EstimatedTotal),
	)

	if p.Final {
		fmt.Fprintln(c.w)
	}
}

func (c *console) Solved(sol pow.Solution) {
	fmt.Fprintf(c.w, "Solved: nonce %d in %s at %.2f kH/s\n", sol.Nonce, pow.FormatElapsed(sol.ProcessingTime), sol.HashRateKps)
}

func (c *console) Failed(err error, retryable bool) {
	fmt.Fprintln(c.w, "Failed:", err)
	if retryable {
		fmt.Fprintln(c.w, "Run the command again to retry.")
	}
}

func (c *console) ReplaceDocument(doc []byte) {
	c.w.Write(doc)
	fmt.Fprintln(c.w)
}
