package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"presence/pkg/projector"
	"presence/pkg/statusync"
)

func sampleView() projector.ViewModel {
	return projector.ViewModel{
		PageName: "Bob",
		Status:   projector.StatusView{ID: 0, Name: "Awake", Desc: "around", Color: "awake"},
		Devices: []projector.DeviceLine{
			{ID: "pc", Name: "Laptop", Using: true, Text: "editor"},
			{ID: "phone", Name: "Phone", Text: "idle"},
		},
		ReceivedAt:  "2026-03-01 12:00:00",
		LastUpdated: "2026-03-01 11:59:00",
		Timezone:    "UTC",
	}
}

func TestRenderFrame(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	renderFrame(&buf, sampleView())
	want := strings.Join([]string{
		"[2026-03-01 12:00:00] Bob: Awake",
		"  around",
		"  * Laptop: editor",
		"    Phone: idle",
		"  last updated 2026-03-01 11:59:00 (UTC)",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("renderFrame:\n%s\nwant:\n%s", buf.String(), want)
	}

	buf.Reset()
	renderFrame(&buf, projector.ErrorView{Message: "unknown status id"})
	if buf.String() != "[error] unknown status id\n" {
		t.Errorf("error frame = %q", buf.String())
	}
}

func TestDescribeState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		change statusync.StateChange
		want   string
	}{
		{"open", statusync.StateChange{State: statusync.StateOpen}, "-- open"},
		{
			"reconnecting",
			statusync.StateChange{State: statusync.StateReconnecting, Attempt: 3, RetryIn: 4 * time.Second, Err: errors.New("reset\nby peer")},
			"-- reconnecting in 4s (attempt 3): reset by peer",
		},
		{"degraded", statusync.StateChange{State: statusync.StateDegraded, Err: errors.New("edge")}, "-- degraded: edge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := describeState(tt.change); got != tt.want {
				t.Errorf("describeState = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrinterJSONForNonTerminal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := newPrinter(&buf, false)
	p.frame(projector.ErrorView{Message: "boom"})
	p.state(statusync.StateChange{State: statusync.StateOpen})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %q", buf.String())
	}
	if lines[0] != `{"type":"error","error":"boom"}` {
		t.Errorf("error line = %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], `{"type":"state","state":{"state":"open"`) {
		t.Errorf("state line = %s", lines[1])
	}
}
