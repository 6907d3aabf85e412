package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/go-units"
	"golang.org/x/term"

	"havit-go/internal/catalog"
)

const progressInterval = 200 * time.Millisecond

// progressLine keeps a single status line on a terminal up to date.
type progressLine struct {
	w       io.Writer
	now     func() time.Time
	files   int64
	bytes   int64
	last    time.Time
	written bool
}

var _ catalog.Progress = (*progressLine)(nil)

// newProgress returns a progress line when w is a terminal, and nil
// otherwise so piped output stays clean.
func newProgress(w io.Writer) catalog.Progress {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return &progressLine{w: w, now: time.Now}
}

func (p *progressLine) FileDone(_ string, n int64) {
	p.files++
	p.bytes += n

	now := p.now()
	if p.written && now.Sub(p.last) < progressInterval {
		return
	}
	p.last = now
	p.draw()
}

func (p *progressLine) Finish() {
	if !p.written {
		return
	}
	p.draw()
	fmt.Fprintln(p.w)
}

func (p *progressLine) draw() {
	fmt.Fprintf(p.w, "\r\033[K%d files, %s", p.files, units.BytesSize(float64(p.bytes)))
	p.written = true
}

// throughput formats the summary printed after a run, e.g.
// "it took 1.2s to process 10485760 bytes (8MiB/sec)".
func throughput(bytes int64, elapsed time.Duration) string {
	secs := elapsed.Seconds()
	rate := float64(bytes)
	if secs >= 0.001 {
		rate = float64(bytes) / secs
	}
	return fmt.Sprintf("it took %.1fs to process %d bytes (%s/sec)", secs, bytes, units.BytesSize(rate))
}
