package sync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vitalmesh/telemetryd/internal/models"
)

// memStore is an in-memory Store used by the sync tests.
type memStore struct {
	mu      sync.Mutex
	records map[string][]models.Record // category -> records

	appendErr   error
	unsyncedErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string][]models.Record)}
}

func (m *memStore) Append(ctx context.Context, rec models.Record) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	category := rec.Category()
	for i, existing := range m.records[category] {
		if existing.RecordID() == rec.RecordID() {
			// Duplicate id: last write wins
			m.records[category][i] = rec
			return nil
		}
	}
	m.records[category] = append(m.records[category], rec)
	return nil
}

func (m *memStore) AppendBatch(ctx context.Context, recs []models.Record) error {
	for _, rec := range recs {
		if err := m.Append(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Unsynced(ctx context.Context, category string, limit int) ([]models.Record, error) {
	if m.unsyncedErr != nil {
		return nil, m.unsyncedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Record
	for _, rec := range m.records[category] {
		if !rec.IsSynced() {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LocalCreatedAt().Before(out[j].LocalCreatedAt())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) MarkSynced(ctx context.Context, category string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for _, rec := range m.records[category] {
		if _, ok := wanted[rec.RecordID()]; ok {
			setSynced(rec)
		}
	}
	return nil
}

func (m *memStore) PurgeOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []models.Record
	var purged int64
	for _, rec := range m.records[category] {
		if rec.IsSynced() && rec.LocalCreatedAt().Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, rec)
	}
	m.records[category] = kept
	return purged, nil
}

func (m *memStore) UnsyncedCount(ctx context.Context, category string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, rec := range m.records[category] {
		if !rec.IsSynced() {
			count++
		}
	}
	return count, nil
}

func (m *memStore) count(category string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[category])
}

func setSynced(rec models.Record) {
	switch r := rec.(type) {
	case *models.HeartRateRecord:
		r.Synced = true
	case *models.GPSRecord:
		r.Synced = true
	case *models.SleepStateRecord:
		r.Synced = true
	case *models.PowerEventRecord:
		r.Synced = true
	case *models.GenericRecord:
		r.Synced = true
	default:
		panic(fmt.Sprintf("unknown record type %T", rec))
	}
}

// heartRate builds an unsynced heart-rate record with a fixed creation time.
func heartRate(id string, createdAt time.Time) *models.HeartRateRecord {
	return &models.HeartRateRecord{
		RecordBase: models.RecordBase{
			ID:         id,
			DeviceID:   "dev-test",
			RecordedAt: createdAt,
			Timestamp:  createdAt.UnixMilli(),
			CreatedAt:  createdAt,
		},
		BPM:        72,
		Confidence: 0.9,
	}
}

// gpsFix builds an unsynced GPS record.
func gpsFix(id string, lat, lon float64, createdAt time.Time) *models.GPSRecord {
	return &models.GPSRecord{
		RecordBase: models.RecordBase{
			ID:         id,
			DeviceID:   "dev-test",
			RecordedAt: createdAt,
			Timestamp:  createdAt.UnixMilli(),
			CreatedAt:  createdAt,
		},
		Latitude:  lat,
		Longitude: lon,
	}
}

// genericRec builds an unsynced generic record with the given type tag.
func genericRec(id, typeID string, createdAt time.Time) *models.GenericRecord {
	return &models.GenericRecord{
		RecordBase: models.RecordBase{
			ID:         id,
			DeviceID:   "dev-test",
			RecordedAt: createdAt,
			Timestamp:  createdAt.UnixMilli(),
			CreatedAt:  createdAt,
		},
		MessageTypeID: typeID,
		Payload:       []byte(`{"k":"v"}`),
	}
}
