// Package projector turns a validated snapshot into what a UI renders. It is
// a pure function of its inputs: the same snapshot, options and receive time
// always produce the same Frame.
package projector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/x/ansi"
	"github.com/samber/lo"

	"presence/pkg/protocol"
)

// TimeLayout formats every timestamp in a ViewModel.
const TimeLayout = "2006-01-02 15:04:05"

// Ellipsis marks a truncated device line.
const Ellipsis = "..."

// Frame is either a ViewModel or an ErrorView.
type Frame interface {
	isFrame()
}

// ViewModel is a renderable status view.
type ViewModel struct {
	PageName    string       `json:"page_name,omitempty"`
	Status      StatusView   `json:"status"`
	Devices     []DeviceLine `json:"devices"`
	ReceivedAt  string       `json:"received_at"`  // local time the snapshot arrived
	LastUpdated string       `json:"last_updated"` // server's last change, in the display timezone
	Timezone    string       `json:"timezone"`
}

// StatusView is the resolved manual status.
type StatusView struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
	Color string `json:"color"`
}

// DeviceLine is one device, ready to print.
type DeviceLine struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Using bool   `json:"using"`
	Text  string `json:"text"`  // sanitized and capped
	Title string `json:"title"` // sanitized, uncapped; for tooltips or detail views
}

// ErrorView replaces the status view when a snapshot cannot be shown.
type ErrorView struct {
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (ViewModel) isFrame() {}
func (ErrorView) isFrame() {}

// Options controls projection. OptionsFrom derives it from metadata.
type Options struct {
	PageName    string
	Catalog     protocol.Catalog
	DeviceSlice int // rune cap per device line, 0 disables
	NotUsing    string
	Sorted      bool // order devices by display name instead of id
	UsingFirst  bool // devices in use before idle ones
	Timezone    string
	Local       *time.Location // zone for ReceivedAt; time.Local when nil
}

// OptionsFrom builds Options from site metadata.
func OptionsFrom(meta protocol.Metadata) Options {
	return Options{
		PageName:    meta.PageName,
		Catalog:     meta.Catalog,
		DeviceSlice: meta.DeviceSlice,
		NotUsing:    meta.NotUsing,
		Sorted:      meta.Sorted,
		UsingFirst:  meta.UsingFirst,
		Timezone:    meta.Timezone,
	}
}

// ErrUnknownStatus is the cause of an ErrorView for a status id outside the
// catalog.
var ErrUnknownStatus = errors.New("unknown status id")

// Project renders snap. Failures never panic; they become an ErrorView.
func Project(snap protocol.StatusSnapshot, opts Options, receivedAt time.Time) Frame {
	if !snap.Success {
		msg := Sanitize(snap.Details)
		if msg == "" {
			msg = "unknown error"
		}
		return ErrorView{Message: msg, Cause: protocol.ErrServerUnsuccessful}
	}

	status, err := resolveStatus(snap.Status, opts.Catalog)
	if err != nil {
		return ErrorView{Message: err.Error(), Cause: err}
	}

	tz := displayZone(snap.Timezone, opts.Timezone)
	local := opts.Local
	if local == nil {
		local = time.Local
	}

	vm := ViewModel{
		PageName:   Sanitize(opts.PageName),
		Status:     status,
		Devices:    projectDevices(snap.Devices, opts),
		ReceivedAt: receivedAt.In(local).Format(TimeLayout),
		Timezone:   tz.String(),
	}
	if t := snap.LastUpdatedTime(); !t.IsZero() {
		vm.LastUpdated = t.In(tz).Format(TimeLayout)
	}
	return vm
}

// FromError wraps a failure for display.
func FromError(err error) ErrorView {
	return ErrorView{Message: Sanitize(err.Error()), Cause: err}
}

func resolveStatus(s protocol.StatusItem, catalog protocol.Catalog) (StatusView, error) {
	if len(catalog) == 0 {
		// No catalog (metadata unavailable): trust the resolved status the
		// snapshot carries, but never the server's "unknown" marker.
		if s.ID < 0 {
			return StatusView{}, &protocol.DataError{Reason: fmt.Sprintf("status id %d", s.ID), Err: ErrUnknownStatus}
		}
		return StatusView{ID: s.ID, Name: Sanitize(s.Name), Desc: Sanitize(s.Desc), Color: Sanitize(s.Color)}, nil
	}

	item, ok := catalog.Lookup(s.ID)
	if !ok {
		return StatusView{}, &protocol.DataError{Reason: fmt.Sprintf("status id %d", s.ID), Err: ErrUnknownStatus}
	}
	desc := item.Desc
	if desc == "" {
		desc = s.Desc
	}
	return StatusView{ID: item.ID, Name: Sanitize(item.Name), Desc: Sanitize(desc), Color: Sanitize(item.Color)}, nil
}

func displayZone(names ...string) *time.Location {
	for _, name := range names {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

func projectDevices(devices map[string]protocol.DeviceEntry, opts Options) []DeviceLine {
	ids := lo.Keys(devices)
	sort.Strings(ids)

	lines := make([]DeviceLine, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, projectDevice(id, devices[id], opts))
	}

	if opts.Sorted {
		sort.SliceStable(lines, func(i, j int) bool {
			return strings.ToLower(lines[i].Name) < strings.ToLower(lines[j].Name)
		})
	}
	if opts.UsingFirst {
		using := lo.Filter(lines, func(l DeviceLine, _ int) bool { return l.Using })
		idle := lo.Filter(lines, func(l DeviceLine, _ int) bool { return !l.Using })
		lines = append(using, idle...)
	}
	return lines
}

func projectDevice(id string, d protocol.DeviceEntry, opts Options) DeviceLine {
	name := Sanitize(d.ShowName)
	if name == "" {
		name = Sanitize(id)
	}

	line := DeviceLine{ID: id, Name: name, Using: d.Using}
	if !d.Using {
		// The raw status of an idle device is never shown, not even in
		// the title.
		text := Sanitize(opts.NotUsing)
		if text == "" {
			text = protocol.DefaultNotUsing
		}
		line.Text, line.Title = text, text
		return line
	}

	full := Sanitize(d.Status)
	if full == "" {
		full = Ellipsis
	}
	line.Title = full
	line.Text = Truncate(full, opts.DeviceSlice)
	return line
}

// Sanitize strips terminal escape sequences and control characters and
// flattens line breaks to spaces, so untrusted text cannot move the cursor
// or break a single-line layout.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	s = ansi.Strip(s)
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Truncate caps s at limit runes. Longer text keeps limit-3 runes followed by
// Ellipsis; below four runes there is no room for the marker and the text is
// cut hard. A limit of 0 or less disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= len(Ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(Ellipsis)]) + Ellipsis
}
