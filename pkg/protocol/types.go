package protocol

import (
	"math"
	"time"
)

// StatusItem is one entry of the status catalog, and also the resolved
// status carried by a snapshot.
type StatusItem struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
	Color string `json:"color"`
}

// Catalog is the ordered status list fetched once from StatusListPath.
// A status id is an index into it.
type Catalog []StatusItem

// Lookup returns the item at position id.
func (c Catalog) Lookup(id int) (StatusItem, bool) {
	if id < 0 || id >= len(c) {
		return StatusItem{}, false
	}
	item := c[id]
	item.ID = id
	return item, true
}

// DeviceEntry is one reporting device in a snapshot.
type DeviceEntry struct {
	ShowName string `json:"show_name"`
	Using    bool   `json:"using"`
	Status   string `json:"status"` // only meaningful while Using
}

// StatusSnapshot is the payload of an update event and of a query response.
type StatusSnapshot struct {
	Success     bool                   `json:"success"`
	Status      StatusItem             `json:"status"`
	Devices     map[string]DeviceEntry `json:"device"`
	LastUpdated float64                `json:"last_updated"` // epoch seconds
	ServerTime  float64                `json:"time"`         // epoch seconds
	Timezone    string                 `json:"timezone,omitempty"`
	Details     string                 `json:"details,omitempty"` // failure text when !Success

	// Refresh is the server-suggested poll interval. Zero when the response
	// did not carry one.
	Refresh time.Duration `json:"-"`
}

// LastUpdatedTime converts LastUpdated to a time.Time. The zero time is
// returned for a zero or non-finite value.
func (s StatusSnapshot) LastUpdatedTime() time.Time {
	return epochTime(s.LastUpdated)
}

func epochTime(secs float64) time.Time {
	if secs == 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}

// Metadata is the static site configuration combined with the catalog.
type Metadata struct {
	Version         string        `json:"version"`
	Timezone        string        `json:"timezone"`
	PageName        string        `json:"page_name"`
	DeviceSlice     int           `json:"device_slice"` // display cap in runes, 0 disables
	RefreshInterval time.Duration `json:"refresh_interval"`
	NotUsing        string        `json:"not_using"`
	Sorted          bool          `json:"sorted"`
	UsingFirst      bool          `json:"using_first"`
	Catalog         Catalog       `json:"catalog"`
}

// Defaults used when the server omits a field or metadata is unavailable.
const (
	DefaultRefreshInterval = 5 * time.Second
	DefaultDeviceSlice     = 50
	DefaultNotUsing        = "not in use"
)

// DefaultMetadata returns the metadata assumed before (or instead of) a
// successful fetch.
func DefaultMetadata() Metadata {
	return Metadata{
		Timezone:        "UTC",
		DeviceSlice:     DefaultDeviceSlice,
		RefreshInterval: DefaultRefreshInterval,
	}
}
