package protocol

// CacheRow represents a row in the metadata_cache SQLite table.
// Payload is the CBOR encoding of Metadata.
type CacheRow struct {
	BaseURL   string `json:"base_url"`
	Payload   []byte `json:"payload"`
	Version   string `json:"version"`
	FetchedAt string `json:"fetched_at"`
}
