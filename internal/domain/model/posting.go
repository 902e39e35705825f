package model

import "time"

// RawPosting is a posting as returned by a source adapter.
// Extra carries adapter-specific fields that the ingestion core ignores.
type RawPosting struct {
	Title    string         `json:"title"`
	Company  string         `json:"company"`
	Location string         `json:"location"`
	URL      string         `json:"url"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// JobFingerprint tracks when a unique real-world posting was seen.
type JobFingerprint struct {
	Hash        string    `json:"hash"          db:"hash"`
	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"  db:"last_seen_at"`
	RepostCount int       `json:"repost_count"  db:"repost_count"`
}

// IngestedPosting is handed to storage once per posting per cycle.
type IngestedPosting struct {
	Fingerprint string     `json:"fingerprint"`
	Source      string     `json:"source"`
	Raw         RawPosting `json:"raw"`
	IsNew       bool       `json:"is_new"`
	RepostCount int        `json:"repost_count"`
	ObservedAt  time.Time  `json:"observed_at"`
}

// StoredPosting is a posting as kept by the Postgres sink: one row per fingerprint plus the
// sources that surfaced it.
type StoredPosting struct {
	Fingerprint string         `json:"fingerprint"`
	Title       string         `json:"title"`
	Company     string         `json:"company"`
	Location    string         `json:"location"`
	URL         string         `json:"url"`
	Extra       map[string]any `json:"extra,omitempty"`
	FirstSeenAt time.Time      `json:"first_seen_at"`
	LastSeenAt  time.Time      `json:"last_seen_at"`
	RepostCount int            `json:"repost_count"`
	Sources     []string       `json:"sources"`
}
