package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// LegacyTimeLayout is how version 1 responses format timestamps, in the
// server's timezone.
const LegacyTimeLayout = "2006-01-02 15:04:05"

type snapshotWire struct {
	Success     *bool                  `json:"success"`
	Status      json.RawMessage        `json:"status"`
	Info        *StatusItem            `json:"info"` // version 1: status is a bare id
	Device      map[string]DeviceEntry `json:"device"`
	Devices     map[string]DeviceEntry `json:"devices"`
	LastUpdated json.RawMessage        `json:"last_updated"`
	Time        json.RawMessage        `json:"time"`
	Timezone    string                 `json:"timezone"`
	Details     string                 `json:"details"`
	Message     string                 `json:"message"`
	Refresh     *float64               `json:"refresh"` // milliseconds
}

// DecodeSnapshot validates and decodes an update payload or query response.
// A response with success=false decodes without error; the failure text is in
// Details. Anything that is not a well-formed snapshot returns a *DataError.
func DecodeSnapshot(data []byte) (StatusSnapshot, error) {
	var w snapshotWire
	if err := json.Unmarshal(data, &w); err != nil {
		return StatusSnapshot{}, &DataError{Reason: "decode snapshot", Err: err}
	}
	if w.Success == nil {
		return StatusSnapshot{}, &DataError{Reason: "snapshot missing success"}
	}

	snap := StatusSnapshot{
		Success:  *w.Success,
		Timezone: w.Timezone,
		Details:  w.Details,
	}
	if snap.Details == "" {
		snap.Details = w.Message
	}
	if !snap.Success {
		return snap, nil
	}

	status, err := decodeStatus(w.Status, w.Info)
	if err != nil {
		return StatusSnapshot{}, err
	}
	snap.Status = status

	snap.Devices = w.Device
	if snap.Devices == nil {
		snap.Devices = w.Devices
	}
	if snap.Devices == nil {
		snap.Devices = map[string]DeviceEntry{}
	}

	loc := time.UTC
	if w.Timezone != "" {
		if l, lerr := time.LoadLocation(w.Timezone); lerr == nil {
			loc = l
		}
	}
	if snap.LastUpdated, err = decodeEpoch(w.LastUpdated, loc); err != nil {
		return StatusSnapshot{}, &DataError{Reason: "last_updated", Err: err}
	}
	if snap.ServerTime, err = decodeEpoch(w.Time, loc); err != nil {
		return StatusSnapshot{}, &DataError{Reason: "time", Err: err}
	}

	if w.Refresh != nil && *w.Refresh > 0 {
		snap.Refresh = time.Duration(*w.Refresh * float64(time.Millisecond))
	}
	return snap, nil
}

func decodeStatus(raw json.RawMessage, info *StatusItem) (StatusItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return StatusItem{}, &DataError{Reason: "snapshot missing status"}
	}

	if raw[0] == '{' {
		var item StatusItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return StatusItem{}, &DataError{Reason: "decode status", Err: err}
		}
		return item, nil
	}

	var id int
	if err := json.Unmarshal(raw, &id); err != nil {
		return StatusItem{}, &DataError{Reason: "decode status", Err: err}
	}
	item := StatusItem{ID: id}
	if info != nil {
		item.Name, item.Desc, item.Color = info.Name, info.Desc, info.Color
	}
	return item, nil
}

// decodeEpoch accepts epoch seconds as a JSON number, or a legacy local
// timestamp string interpreted in loc. Absent values decode to 0.
func decodeEpoch(raw json.RawMessage, loc *time.Location) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] != '"' {
		return strconv.ParseFloat(string(raw), 64)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	t, err := time.ParseInLocation(LegacyTimeLayout, s, loc)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return float64(t.UnixNano()) / float64(time.Second), nil
}

type metadataWire struct {
	Success    *bool  `json:"success"`
	VersionStr string `json:"version_str"`
	Timezone   string `json:"timezone"`
	Page       struct {
		Name string `json:"name"`
	} `json:"page"`
	Status struct {
		DeviceSlice     *int     `json:"device_slice"`
		RefreshInterval *float64 `json:"refresh_interval"` // milliseconds
		NotUsing        *string  `json:"not_using"`
		Sorted          bool     `json:"sorted"`
		UsingFirst      bool     `json:"using_first"`
	} `json:"status"`
}

// DecodeMetadata decodes a MetaPath response. Fields the server omits keep
// their DefaultMetadata values. The catalog is fetched separately.
func DecodeMetadata(data []byte) (Metadata, error) {
	var w metadataWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Metadata{}, &DataError{Reason: "decode metadata", Err: err}
	}
	if err := checkSuccess(w.Success, "metadata"); err != nil {
		return Metadata{}, err
	}

	meta := DefaultMetadata()
	meta.Version = w.VersionStr
	meta.PageName = w.Page.Name
	if w.Timezone != "" {
		meta.Timezone = w.Timezone
	}
	if w.Status.DeviceSlice != nil {
		if *w.Status.DeviceSlice < 0 {
			return Metadata{}, &DataError{Reason: fmt.Sprintf("negative device_slice %d", *w.Status.DeviceSlice)}
		}
		meta.DeviceSlice = *w.Status.DeviceSlice
	}
	if w.Status.RefreshInterval != nil && *w.Status.RefreshInterval > 0 {
		meta.RefreshInterval = time.Duration(*w.Status.RefreshInterval * float64(time.Millisecond))
	}
	if w.Status.NotUsing != nil {
		meta.NotUsing = *w.Status.NotUsing
	}
	meta.Sorted = w.Status.Sorted
	meta.UsingFirst = w.Status.UsingFirst
	return meta, nil
}

type statusListWire struct {
	Success    *bool        `json:"success"`
	StatusList []StatusItem `json:"status_list"`
}

// DecodeStatusList decodes a StatusListPath response. Item ids are set to
// their position, which is what snapshots reference.
func DecodeStatusList(data []byte) (Catalog, error) {
	var w statusListWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &DataError{Reason: "decode status list", Err: err}
	}
	if err := checkSuccess(w.Success, "status list"); err != nil {
		return nil, err
	}

	catalog := make(Catalog, len(w.StatusList))
	for i, item := range w.StatusList {
		item.ID = i
		catalog[i] = item
	}
	return catalog, nil
}

func checkSuccess(success *bool, what string) error {
	if success == nil {
		return &DataError{Reason: what + " missing success"}
	}
	if !*success {
		return &DataError{Reason: what, Err: ErrServerUnsuccessful}
	}
	return nil
}

// IsDataError reports whether err is or wraps a *DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}
