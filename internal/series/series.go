// Package series is the rolling per-metric history. Each metric's samples
// live as one JSON array under the metric's storage key, capped at a fixed
// length with oldest-first eviction.
package series

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/util"
)

// DefaultCap is the per-metric history length.
const DefaultCap = 1000

var (
	// ErrNonFinite is returned by Append for NaN or ±Inf values.
	ErrNonFinite = errors.New("sample value is not finite")
	// ErrUnknownMetric is returned for IDs without a definition.
	ErrUnknownMetric = errors.New("unknown metric")
)

// KV is the subset of the key-value store the history needs.
// *store.Store satisfies it.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Update(key string, fn func(old []byte) ([]byte, error)) error
}

// Store reads and writes capped sample histories.
type Store struct {
	kv  KV
	cap int
}

// New returns a history over kv keeping at most capacity samples per
// metric. capacity <= 0 selects DefaultCap.
func New(kv KV, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{kv: kv, cap: capacity}
}

// Cap returns the per-metric capacity.
func (s *Store) Cap() int { return s.cap }

func storageKey(id model.MetricID) (string, error) {
	d, ok := metric.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, id)
	}
	return d.StorageKey, nil
}

// decode parses a stored array. ok is false when the bytes are not a valid
// sample array.
func decode(b []byte) ([]model.Sample, bool) {
	if len(b) == 0 {
		return nil, true
	}
	var samples []model.Sample
	if err := json.Unmarshal(b, &samples); err != nil {
		return nil, false
	}
	return samples, true
}

// trim drops the oldest entries so that len <= capacity.
func trim(samples []model.Sample, capacity int) []model.Sample {
	if over := len(samples) - capacity; over > 0 {
		return samples[over:]
	}
	return samples
}

// Append adds one sample to the end of id's history and evicts from the
// front until the history fits the cap. Load, append, trim and persist run in
// one store transaction. Duplicate timestamps are kept.
func (s *Store) Append(id model.MetricID, sample model.Sample) error {
	if !util.IsFinite(sample.Value) {
		return fmt.Errorf("%s: %w", id, ErrNonFinite)
	}
	key, err := storageKey(id)
	if err != nil {
		return err
	}
	return s.kv.Update(key, func(old []byte) ([]byte, error) {
		samples, ok := decode(old)
		if !ok {
			slog.Warn("storage_corrupt", "metric", id, "key", key, "action", "reset")
			samples = nil
		}
		samples = trim(append(samples, sample), s.cap)
		return json.Marshal(samples)
	})
}

// Load returns id's history, oldest first. A metric that was never written
// yields an empty slice. A corrupt stored value is logged and treated as
// empty; only store I/O failures are returned as errors.
func (s *Store) Load(id model.MetricID) ([]model.Sample, error) {
	key, err := storageKey(id)
	if err != nil {
		return nil, err
	}
	b, found, err := s.kv.Get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return []model.Sample{}, nil
	}
	samples, ok := decode(b)
	if !ok {
		slog.Warn("storage_corrupt", "metric", id, "key", key, "bytes", len(b))
		return []model.Sample{}, nil
	}
	if samples == nil {
		samples = []model.Sample{}
	}
	return samples, nil
}

// Replace overwrites id's history, keeping the newest cap samples.
// Non-finite samples are dropped and counted in skipped.
func (s *Store) Replace(id model.MetricID, samples []model.Sample) (skipped int, err error) {
	key, err := storageKey(id)
	if err != nil {
		return 0, err
	}
	kept := make([]model.Sample, 0, len(samples))
	for _, smp := range samples {
		if !util.IsFinite(smp.Value) {
			skipped++
			continue
		}
		kept = append(kept, smp)
	}
	b, err := json.Marshal(trim(kept, s.cap))
	if err != nil {
		return skipped, fmt.Errorf("encoding %s: %w", id, err)
	}
	return skipped, s.kv.Put(key, b)
}

// Clear deletes id's history.
func (s *Store) Clear(id model.MetricID) error {
	key, err := storageKey(id)
	if err != nil {
		return err
	}
	return s.kv.Delete(key)
}

// ClearAll deletes every metric's history. Preferences are left alone.
func (s *Store) ClearAll() error {
	var errs util.MultiError
	for _, id := range model.AllMetrics {
		errs.Add(s.Clear(id))
	}
	return errs.Err()
}

// Counts returns the stored sample count for every metric.
func (s *Store) Counts() (map[model.MetricID]int, error) {
	out := make(map[model.MetricID]int, len(model.AllMetrics))
	for _, id := range model.AllMetrics {
		samples, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		out[id] = len(samples)
	}
	return out, nil
}

// Latest returns the newest sample for id, if any.
func (s *Store) Latest(id model.MetricID) (model.Sample, bool, error) {
	samples, err := s.Load(id)
	if err != nil || len(samples) == 0 {
		return model.Sample{}, false, err
	}
	return samples[len(samples)-1], true, nil
}
