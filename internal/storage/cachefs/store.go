// Package cachefs persists the last successful dividend scrape as a
// versioned envelope on disk.
package cachefs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/models"
	"github.com/bobmcallan/dividendos/internal/storage/filestore"
)

const (
	cacheKey  = "dividendos"
	backupKey = "dividendos-backup"
)

// envelopeWire is the on-disk layout. The payload is decoded separately so
// both the grouped and the legacy flat-list layouts can be recognised.
type envelopeWire struct {
	Dividends  json.RawMessage `json:"dividendos"`
	LastUpdate *time.Time      `json:"lastUpdate"`
	Version    string          `json:"version"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Store is the dividend cache backed by a file store.
type Store struct {
	files  *filestore.Store
	logger *common.Logger
}

// NewStore returns a cache store writing into files.
func NewStore(logger *common.Logger, files *filestore.Store) *Store {
	return &Store{files: files, logger: logger}
}

// Path returns the location of the cache file.
func (s *Store) Path() string {
	return s.files.Path(cacheKey)
}

// Load returns the persisted envelope. Missing, unreadable, unversioned or
// unrecognised files all produce a fresh empty envelope.
func (s *Store) Load() *models.CacheEnvelope {
	data, err := s.files.ReadRaw(cacheKey)
	if err != nil {
		if !errors.Is(err, filestore.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("Cache unreadable, starting empty")
		}
		return models.NewEmptyEnvelope()
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.Path()).Msg("Discarding unusable cache file")
		return models.NewEmptyEnvelope()
	}

	if env.Shape == models.CacheShapeLegacy {
		s.logger.Info().Int("records", len(env.Legacy)).Msg("Loaded legacy flat-list cache")
	}
	return env
}

// decodeEnvelope classifies the payload layout and migrates it into the
// in-memory envelope.
func decodeEnvelope(data []byte) (*models.CacheEnvelope, error) {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("invalid cache JSON: %w", err)
	}
	if wire.Version == "" {
		return nil, errors.New("cache envelope has no version")
	}

	env := &models.CacheEnvelope{
		LastUpdate: wire.LastUpdate,
		Version:    wire.Version,
		CreatedAt:  wire.CreatedAt,
		Dividends:  models.NewDividendSet(),
	}

	payload := bytes.TrimSpace(wire.Dividends)
	switch {
	case len(payload) > 0 && payload[0] == '[':
		var legacy []models.DividendRecord
		if err := json.Unmarshal(payload, &legacy); err != nil {
			return nil, fmt.Errorf("invalid legacy dividend list: %w", err)
		}
		env.Shape = models.CacheShapeLegacy
		env.Legacy = legacy
		if env.Legacy == nil {
			env.Legacy = []models.DividendRecord{}
		}

	case len(payload) > 0 && payload[0] == '{':
		var groups map[string]json.RawMessage
		if err := json.Unmarshal(payload, &groups); err != nil {
			return nil, fmt.Errorf("invalid dividend groups: %w", err)
		}
		if _, ok := groups["confirmados"]; !ok {
			return nil, errors.New("dividend groups missing confirmados")
		}
		if _, ok := groups["previstos"]; !ok {
			return nil, errors.New("dividend groups missing previstos")
		}
		var set models.DividendSet
		if err := json.Unmarshal(payload, &set); err != nil {
			return nil, fmt.Errorf("invalid dividend groups: %w", err)
		}
		env.Shape = models.CacheShapeCurrent
		env.Dividends = set
		if env.Dividends.Confirmed == nil {
			env.Dividends.Confirmed = []models.DividendRecord{}
		}
		if env.Dividends.Forecast == nil {
			env.Dividends.Forecast = []models.DividendRecord{}
		}

	default:
		return nil, errors.New("cache envelope has no recognisable dividend payload")
	}

	return env, nil
}

// Save backs up the current file and writes set as the new envelope.
func (s *Store) Save(set models.DividendSet, timestamp time.Time) bool {
	if set.Confirmed == nil {
		set.Confirmed = []models.DividendRecord{}
	}
	if set.Forecast == nil {
		set.Forecast = []models.DividendRecord{}
	}
	return s.write(set, timestamp, set.Len())
}

// SaveLegacy writes records in the flat-list layout older releases used.
func (s *Store) SaveLegacy(records []models.DividendRecord, timestamp time.Time) bool {
	if records == nil {
		records = []models.DividendRecord{}
	}
	return s.write(records, timestamp, len(records))
}

func (s *Store) write(payload interface{}, timestamp time.Time, count int) bool {
	s.backup()

	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode dividend payload")
		return false
	}

	ts := timestamp.UTC()
	wire := envelopeWire{
		Dividends:  raw,
		LastUpdate: &ts,
		Version:    models.CacheSchemaVersion,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.files.WriteJSON(cacheKey, wire); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save dividend cache")
		return false
	}

	s.logger.Info().Int("records", count).Time("last_update", ts).Msg("Dividend cache saved")
	return true
}

// backup copies the current cache file aside. Failures are logged only.
func (s *Store) backup() {
	err := s.files.Copy(cacheKey, backupKey)
	switch {
	case err == nil:
		s.logger.Debug().Msg("Dividend cache backed up")
	case errors.Is(err, filestore.ErrNotFound):
	default:
		s.logger.Warn().Err(err).Msg("Failed to back up dividend cache")
	}
}

// Info describes the cache file as it is on disk. A missing file, or one
// that cannot be decoded, is reported in Error.
func (s *Store) Info() models.CacheInfo {
	fi, err := s.files.Stat(cacheKey)
	if err != nil {
		return models.CacheInfo{Error: err.Error()}
	}

	modified := fi.ModTime().UTC()
	info := models.CacheInfo{
		FileSize:     fi.Size(),
		LastModified: &modified,
	}

	data, err := s.files.ReadRaw(cacheKey)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		info.Error = fmt.Sprintf("unusable cache file: %v", err)
		return info
	}

	info.RecordCount = env.RecordCount()
	info.LastUpdate = env.LastUpdate
	info.SchemaVersion = env.Version
	return info
}

// Clear deletes the cache file. Clearing an absent cache succeeds.
func (s *Store) Clear() bool {
	if err := s.files.Delete(cacheKey); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear dividend cache")
		return false
	}
	s.logger.Info().Msg("Dividend cache cleared")
	return true
}
