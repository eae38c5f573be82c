package models

import "time"

// CacheSchemaVersion is written into every saved envelope.
const CacheSchemaVersion = "1.0"

// CacheShape identifies which payload layout an envelope was loaded from.
type CacheShape string

const (
	CacheShapeEmpty   CacheShape = "empty"
	CacheShapeCurrent CacheShape = "current" // {"confirmados": [...], "previstos": [...]}
	CacheShapeLegacy  CacheShape = "legacy"  // flat list of records
)

// CacheEnvelope is the persisted wrapper around the last successful result.
type CacheEnvelope struct {
	Shape      CacheShape
	Dividends  DividendSet
	Legacy     []DividendRecord // set only for CacheShapeLegacy
	LastUpdate *time.Time
	Version    string
	CreatedAt  time.Time
}

// NewEmptyEnvelope returns the envelope used whenever nothing usable is on disk.
func NewEmptyEnvelope() *CacheEnvelope {
	return &CacheEnvelope{
		Shape:     CacheShapeEmpty,
		Dividends: NewDividendSet(),
		Version:   CacheSchemaVersion,
		CreatedAt: time.Now().UTC(),
	}
}

// RecordCount sums both groups, or the flat list for legacy envelopes.
func (e *CacheEnvelope) RecordCount() int {
	if e.Shape == CacheShapeLegacy {
		return len(e.Legacy)
	}
	return e.Dividends.Len()
}

// IsEmpty reports whether the envelope holds no records at all.
func (e *CacheEnvelope) IsEmpty() bool {
	return e.RecordCount() == 0
}

// Set returns the payload as a DividendSet. Legacy records have no group
// information and are surfaced as confirmed.
func (e *CacheEnvelope) Set() DividendSet {
	if e.Shape == CacheShapeLegacy {
		return DividendSet{Confirmed: append([]DividendRecord{}, e.Legacy...), Forecast: []DividendRecord{}}
	}
	s := e.Dividends
	if s.Confirmed == nil {
		s.Confirmed = []DividendRecord{}
	}
	if s.Forecast == nil {
		s.Forecast = []DividendRecord{}
	}
	return s
}

// CacheInfo describes the cache file for the admin endpoint. Error is set
// instead of the other fields when the file cannot be inspected.
type CacheInfo struct {
	FileSize      int64      `json:"fileSize,omitempty"`
	LastModified  *time.Time `json:"lastModified,omitempty"`
	RecordCount   int        `json:"recordCount"`
	LastUpdate    *time.Time `json:"lastUpdate"`
	SchemaVersion string     `json:"version,omitempty"`
	Error         string     `json:"error,omitempty"`
}
