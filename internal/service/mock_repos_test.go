package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"academic-info/internal/model"
	"academic-info/internal/repository"
	"academic-info/internal/resolver"
	"academic-info/internal/source"
)

// ── Mock Source ──

type mockSource struct {
	mu       sync.Mutex
	cap      source.Capability
	batches  []model.BatchTimetable
	fetchErr error
	saveErr  error
	fetches  int
	saved    []model.BatchTimetable
	savedBy  string
}

func newMockSource(doc string) *mockSource {
	batches, err := model.ParseBatches([]byte(doc))
	if err != nil {
		panic(err)
	}
	return &mockSource{cap: source.CapLocalEdit, batches: batches}
}

func (m *mockSource) Name() string                  { return "mock" }
func (m *mockSource) Capability() source.Capability { return m.cap }

func (m *mockSource) Fetch(context.Context) ([]model.BatchTimetable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return model.CloneBatches(m.batches), nil
}

func (m *mockSource) Save(_ context.Context, batches []model.BatchTimetable, updatedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = model.CloneBatches(batches)
	m.savedBy = updatedBy
	m.batches = model.CloneBatches(batches)
	return nil
}

func (m *mockSource) setFetchErr(err error) {
	m.mu.Lock()
	m.fetchErr = err
	m.mu.Unlock()
}

// fetchOnlySource 声明只读能力
type fetchOnlySource struct{ *mockSource }

func (f fetchOnlySource) Capability() source.Capability { return source.CapFetchOnly }

// batchWriterSource 额外支持单班级写入
type batchWriterSource struct {
	*mockSource
	savedBatch model.BatchTimetable
	batchSaves int
}

func (b *batchWriterSource) SaveBatch(_ context.Context, batch model.BatchTimetable, updatedBy string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.savedBatch = batch.Clone()
	b.savedBy = updatedBy
	b.batchSaves++
	return nil
}

// ── Mock KV ──

type mockKV struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMockKV() *mockKV { return &mockKV{data: make(map[string]string)} }

func (m *mockKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", repository.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *mockKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// ── 测试辅助 ──

const testTimetableDoc = `[
  {
    "batch": "E16",
    "Tuesday": [
      {"time": "9:00 - 10:00", "subject": "DBMS", "room": "LT-3", "teacher": "RK"},
      {"time": "10:00 - 11:00", "subject": "OS, OS Lab", "room": "204", "teacher": "AS"},
      {"time": "bad", "subject": "Broken", "room": "", "teacher": ""}
    ],
    "Monday": [
      {"time": "9:00 - 10:00", "subject": "CN", "room": "LT-1", "teacher": "PK"}
    ]
  },
  {"batch": "E17", "Friday": []}
]`

// monday0930 2025-03-03 是周一，IST 09:30
func monday0930() time.Time {
	return time.Date(2025, 3, 3, 9, 30, 0, 0, istZone)
}

var istZone = time.FixedZone("IST", 5*3600+1800)

func newTestResolver(now time.Time) *resolver.Resolver {
	return resolver.New(func() time.Time { return now }, istZone)
}

func setupTimetableService(doc string) (TimetableService, *mockSource) {
	src := newMockSource(doc)
	svc := NewTimetableService(src, newTestResolver(monday0930()), time.Minute, zap.NewNop())
	return svc, src
}
