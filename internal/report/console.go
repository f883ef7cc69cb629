package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ConsolePrinter renders a summary for a terminal.
type ConsolePrinter struct {
	out     io.Writer
	pass    *color.Color
	fail    *color.Color
	heading *color.Color
}

// NewConsolePrinter creates a printer for w. Colors are disabled when w
// is os.Stdout/os.Stderr without a TTY behind it.
func NewConsolePrinter(w io.Writer) *ConsolePrinter {
	p := &ConsolePrinter{
		out:     w,
		pass:    color.New(color.FgGreen, color.Bold),
		fail:    color.New(color.FgRed, color.Bold),
		heading: color.New(color.FgCyan, color.Bold),
	}
	if f, ok := w.(*os.File); ok && !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		p.pass.DisableColor()
		p.fail.DisableColor()
		p.heading.DisableColor()
	}
	return p
}

// Print writes the human-readable run summary.
func (p *ConsolePrinter) Print(s Summary) {
	p.heading.Fprintf(p.out, "\n%s — %s\n", s.Name, s.Kind)
	fmt.Fprintf(p.out, "  elapsed:     %v\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(p.out, "  started:     %d\n", s.Stats.Started)
	fmt.Fprintf(p.out, "  completed:   %d\n", s.Stats.Completed)
	fmt.Fprintf(p.out, "  failed:      %d\n", s.Stats.Failed)
	fmt.Fprintf(p.out, "  throughput:  %.2f/s (target %.2f/s)\n", s.Throughput, s.Stats.TargetRate)

	fmt.Fprintf(p.out, "  latency:     p50=%.1fms p95=%.1fms p99=%.1fms max=%.1fms\n",
		s.Percentiles.P50, s.Percentiles.P95, s.Percentiles.P99, s.Percentiles.Max)
	if s.Dist.Count > 0 {
		fmt.Fprintf(p.out, "  distribution: min=%v mean=%v stddev=%v p90=%v n=%d\n",
			s.Dist.Min.Round(time.Microsecond), s.Dist.Mean.Round(time.Microsecond),
			s.Dist.StdDev.Round(time.Microsecond), s.Dist.P90.Round(time.Microsecond), s.Dist.Count)
	}

	if s.Passed {
		p.pass.Fprintln(p.out, "  PASS")
		return
	}
	p.fail.Fprintln(p.out, "  FAIL")
	for _, failure := range s.Failures {
		fmt.Fprintf(p.out, "    - %s\n", failure)
	}
}
