package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"presence/pkg/projector"
	"presence/pkg/statusync"
)

// printer writes frames and state changes either as human-readable text or
// as JSON lines. Safe for concurrent use.
type printer struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

// newPrinter picks JSON lines unless w is a terminal. force overrides the
// detection.
func newPrinter(w io.Writer, forceJSON bool) *printer {
	return &printer{w: w, json: forceJSON || !isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// line is one JSON output record.
type line struct {
	Type  string                 `json:"type"` // view, error or state
	View  *projector.ViewModel   `json:"view,omitempty"`
	Error string                 `json:"error,omitempty"`
	State *statusync.StateChange `json:"state,omitempty"`
}

func (p *printer) frame(f projector.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.json {
		switch v := f.(type) {
		case projector.ViewModel:
			p.encode(line{Type: "view", View: &v})
		case projector.ErrorView:
			p.encode(line{Type: "error", Error: v.Message})
		}
		return
	}
	renderFrame(p.w, f)
}

func (p *printer) state(c statusync.StateChange) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.json {
		p.encode(line{Type: "state", State: &c})
		return
	}
	fmt.Fprintln(p.w, describeState(c))
}

func (p *printer) encode(l line) {
	_ = json.NewEncoder(p.w).Encode(l) //nolint:errchkjson // best-effort output
}

// renderFrame prints a frame as text.
func renderFrame(w io.Writer, f projector.Frame) {
	switch v := f.(type) {
	case projector.ViewModel:
		title := v.Status.Name
		if v.PageName != "" {
			title = v.PageName + ": " + title
		}
		fmt.Fprintf(w, "[%s] %s\n", v.ReceivedAt, title)
		if v.Status.Desc != "" {
			fmt.Fprintf(w, "  %s\n", v.Status.Desc)
		}
		for _, d := range v.Devices {
			mark := " "
			if d.Using {
				mark = "*"
			}
			fmt.Fprintf(w, "  %s %s: %s\n", mark, d.Name, d.Text)
		}
		if v.LastUpdated != "" {
			fmt.Fprintf(w, "  last updated %s (%s)\n", v.LastUpdated, v.Timezone)
		}
	case projector.ErrorView:
		fmt.Fprintf(w, "[error] %s\n", v.Message)
	}
}

// describeState renders a state change as one line.
func describeState(c statusync.StateChange) string {
	var b strings.Builder
	b.WriteString("-- ")
	b.WriteString(string(c.State))
	if c.State == statusync.StateReconnecting {
		fmt.Fprintf(&b, " in %s (attempt %d)", c.RetryIn.Round(time.Second), c.Attempt)
	}
	if c.Err != nil {
		b.WriteString(": ")
		b.WriteString(projector.Sanitize(c.Err.Error()))
	}
	return b.String()
}
