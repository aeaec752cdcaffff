package aggregator_test

import (
	"context"
	"sync"
	"time"

	"carbon-monitor/internal/models"
)

// fakeRecordSource 仅用于单元测试（内存公司记录）
type fakeRecordSource struct {
	mu      sync.Mutex
	records map[string]fakeRecord
}

type fakeRecord struct {
	status      models.ApplicationStatus
	emissionCap *float64
}

func newFakeRecordSource() *fakeRecordSource {
	return &fakeRecordSource{
		records: make(map[string]fakeRecord),
	}
}

func (f *fakeRecordSource) set(companyID string, status models.ApplicationStatus, emissionCap *float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[companyID] = fakeRecord{status: status, emissionCap: emissionCap}
}

func (f *fakeRecordSource) GetCompanyRecord(ctx context.Context, companyID string) (models.ApplicationStatus, *float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.records[companyID]
	if !ok {
		return "", nil, models.ErrNotFound
	}
	return r.status, r.emissionCap, nil
}

// fakeReadingsStore 仅用于单元测试（内存读数存储）
type fakeReadingsStore struct {
	mu       sync.Mutex
	readings map[string][]models.Reading
}

func newFakeReadingsStore() *fakeReadingsStore {
	return &fakeReadingsStore{
		readings: make(map[string][]models.Reading),
	}
}

func (f *fakeReadingsStore) Append(ctx context.Context, reading models.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings[reading.CompanyID] = append(f.readings[reading.CompanyID], reading)
	return nil
}

func (f *fakeReadingsStore) GetRecent(ctx context.Context, companyID string, limit int) ([]models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := f.readings[companyID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.Reading, len(all))
	copy(out, all)
	return out, nil
}

func floatPtr(v float64) *float64 {
	return &v
}

func testTime(offsetSec int) time.Time {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(offsetSec) * time.Second)
}
