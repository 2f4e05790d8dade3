package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"academic-info/config"
	"academic-info/internal/model"
	"academic-info/internal/repository"
	pkgerrors "academic-info/pkg/errors"
)

const testDoc = `[{"batch":"E16","Tuesday":[{"time":"9:00 - 10:00","subject":"DBMS","room":"LT-3","teacher":"RK"}],"Monday":[]}]`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时文件失败: %v", err)
	}
	return p
}

// ════════════════════════════════════════════════════════════
// 文件数据源
// ════════════════════════════════════════════════════════════

func TestFileSource_FetchAndSnapshot(t *testing.T) {
	path := writeTemp(t, "timetable.json", testDoc)
	kv := repository.NewKVRepo(nil, zap.NewNop())
	src := NewFileSource(path, kv, zap.NewNop())
	ctx := context.Background()

	batches, err := src.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch 失败: %v", err)
	}
	if len(batches) != 1 || batches[0].DayNames()[0] != "Tuesday" {
		t.Fatalf("文件解析结果错误: %+v", batches)
	}

	edited := model.CloneBatches(batches)
	edited[0].Days[0].Sessions[0].Subject = "OS"
	if err := src.Save(ctx, edited, "admin"); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	again, err := src.Fetch(ctx)
	if err != nil {
		t.Fatalf("再次 Fetch 失败: %v", err)
	}
	if again[0].Days[0].Sessions[0].Subject != "OS" {
		t.Errorf("快照应优先于文件，实际 %s", again[0].Days[0].Sessions[0].Subject)
	}
}

func TestFileSource_CorruptSnapshotFallsBack(t *testing.T) {
	path := writeTemp(t, "timetable.json", testDoc)
	kv := repository.NewKVRepo(nil, zap.NewNop())
	_ = kv.Set(context.Background(), repository.KeyTimetableSnapshot, "{broken", 0)

	batches, err := NewFileSource(path, kv, zap.NewNop()).Fetch(context.Background())
	if err != nil || len(batches) != 1 {
		t.Errorf("快照损坏时应回退到文件，err=%v", err)
	}
}

// unreachableKV 模拟 Redis 不可达
type unreachableKV struct{}

func (unreachableKV) Get(context.Context, string) (string, error) {
	return "", errors.New("dial tcp: connection refused")
}
func (unreachableKV) Set(context.Context, string, string, time.Duration) error { return nil }
func (unreachableKV) Delete(context.Context, string) error                   { return nil }

func TestFileSource_SnapshotUnreadableDoesNotRevertToFile(t *testing.T) {
	path := writeTemp(t, "timetable.json", testDoc)
	_, err := NewFileSource(path, unreachableKV{}, zap.NewNop()).Fetch(context.Background())
	if !errors.Is(err, pkgerrors.ErrSourceUnavailable) {
		t.Errorf("快照不可读时应报告不可用而不是返回文件内容，实际 %v", err)
	}
}

func TestFileSource_Missing(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.json"), nil, zap.NewNop())
	if _, err := src.Fetch(context.Background()); !errors.Is(err, pkgerrors.ErrSourceUnavailable) {
		t.Errorf("期望 ErrSourceUnavailable，实际 %v", err)
	}
}

// ════════════════════════════════════════════════════════════
// 远程数据源
// ════════════════════════════════════════════════════════════

func TestRemoteSource_SendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testDoc))
	}))
	defer srv.Close()

	src := NewRemoteSource(&config.RemoteConfig{URL: srv.URL, APIKey: "k-123", Timeout: time.Second}, zap.NewNop())
	batches, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch 失败: %v", err)
	}
	if len(batches) != 1 || batches[0].Batch != "E16" {
		t.Errorf("远程解析结果错误: %+v", batches)
	}
	if src.Capability() != CapRemoteEdit {
		t.Errorf("远程数据源能力应为 %s", CapRemoteEdit)
	}

	bad := NewRemoteSource(&config.RemoteConfig{URL: srv.URL, APIKey: "wrong", Timeout: time.Second}, zap.NewNop())
	if _, err := bad.Fetch(context.Background()); !errors.Is(err, pkgerrors.ErrSourceUnavailable) {
		t.Errorf("期望 ErrSourceUnavailable，实际 %v", err)
	}
}

func TestRemoteSource_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	src := NewRemoteSource(&config.RemoteConfig{URL: srv.URL, Timeout: time.Second}, zap.NewNop())
	if _, err := src.Fetch(context.Background()); !errors.Is(err, pkgerrors.ErrMalformedDocument) {
		t.Errorf("期望 ErrMalformedDocument，实际 %v", err)
	}
}

// ════════════════════════════════════════════════════════════
// 数据库数据源
// ════════════════════════════════════════════════════════════

type mockBatchRepo struct {
	records  []model.BatchRecord
	replaced []model.BatchRecord
	listErr  error
}

func (m *mockBatchRepo) List(context.Context) ([]model.BatchRecord, error) {
	return m.records, m.listErr
}

func (m *mockBatchRepo) GetByID(_ context.Context, id string) (*model.BatchRecord, error) {
	for i := range m.records {
		if m.records[i].BatchID == id {
			return &m.records[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockBatchRepo) Upsert(_ context.Context, rec *model.BatchRecord) error {
	for i := range m.records {
		if m.records[i].BatchID == rec.BatchID {
			m.records[i] = *rec
			return nil
		}
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *mockBatchRepo) ReplaceAll(_ context.Context, recs []model.BatchRecord) error {
	m.replaced = recs
	m.records = recs
	return nil
}

func TestDatabaseSource_SaveAndFetch(t *testing.T) {
	repo := &mockBatchRepo{}
	src := NewDatabaseSource(repo)
	ctx := context.Background()

	batches, _ := model.ParseBatches([]byte(`[{"batch":"B"},{"batch":"A","Monday":[]}]`))
	if err := src.Save(ctx, batches, "admin"); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}
	if len(repo.replaced) != 2 || repo.replaced[1].Position != 1 || repo.replaced[1].BatchID != "A" {
		t.Errorf("position 应取文档顺序，实际 %+v", repo.replaced)
	}

	got, err := src.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch 失败: %v", err)
	}
	if len(got) != 2 || got[0].Batch != "B" {
		t.Errorf("读取结果错误: %+v", got)
	}
}

func TestDatabaseSource_SaveBatchKeepsPosition(t *testing.T) {
	repo := &mockBatchRepo{}
	src := NewDatabaseSource(repo)
	ctx := context.Background()

	batches, _ := model.ParseBatches([]byte(`[{"batch":"B"},{"batch":"A","Monday":[]}]`))
	if err := src.Save(ctx, batches, "admin"); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	edited, _ := model.ParseBatches([]byte(`{"batch":"A","Friday":[{"time":"9:00 - 10:00","subject":"X","room":"1","teacher":"T"}]}`))
	if err := src.SaveBatch(ctx, edited[0], "editor"); err != nil {
		t.Fatalf("SaveBatch 失败: %v", err)
	}
	if len(repo.records) != 2 {
		t.Fatalf("不应新增行，实际 %d 行", len(repo.records))
	}
	rec := repo.records[1]
	if rec.BatchID != "A" || rec.Position != 1 {
		t.Errorf("应保持原 position，实际 %+v", rec)
	}
	if rec.UpdatedBy == nil || *rec.UpdatedBy != "editor" {
		t.Errorf("应记录更新人，实际 %v", rec.UpdatedBy)
	}
	got, err := src.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch 失败: %v", err)
	}
	if got[1].Days[0].Day != "Friday" {
		t.Errorf("单班级写入未生效: %+v", got[1])
	}

	missing, _ := model.ParseBatches([]byte(`{"batch":"Z"}`))
	if err := src.SaveBatch(ctx, missing[0], "editor"); !errors.Is(err, pkgerrors.ErrSourceUnavailable) {
		t.Errorf("未知班级期望 ErrSourceUnavailable，实际 %v", err)
	}
}

func TestDatabaseSource_ListError(t *testing.T) {
	src := NewDatabaseSource(&mockBatchRepo{listErr: errors.New("conn refused")})
	if _, err := src.Fetch(context.Background()); !errors.Is(err, pkgerrors.ErrSourceUnavailable) {
		t.Errorf("期望 ErrSourceUnavailable，实际 %v", err)
	}
}

// ════════════════════════════════════════════════════════════
// 只读 / 构造
// ════════════════════════════════════════════════════════════

func TestReadOnly(t *testing.T) {
	path := writeTemp(t, "timetable.json", testDoc)
	repo := repository.NewRepository(nil, nil, zap.NewNop())
	src, err := New(&config.SourceConfig{Kind: config.SourceFile, File: path, ReadOnly: true}, repo, zap.NewNop())
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}
	if src.Capability() != CapFetchOnly || src.Capability().CanEdit() {
		t.Errorf("只读数据源能力应为 fetch-only，实际 %s", src.Capability())
	}
	w, ok := src.(Writer)
	if !ok {
		t.Fatal("只读包装应实现 Writer 以拒绝写入")
	}
	if err := w.Save(context.Background(), nil, "x"); !errors.Is(err, pkgerrors.ErrReadOnly) {
		t.Errorf("期望 ErrReadOnly，实际 %v", err)
	}
	if _, err := src.Fetch(context.Background()); err != nil {
		t.Errorf("只读数据源仍应可读: %v", err)
	}
}

func TestNew_DatabaseWithoutDB(t *testing.T) {
	repo := repository.NewRepository(nil, nil, zap.NewNop())
	if _, err := New(&config.SourceConfig{Kind: config.SourceDatabase}, repo, zap.NewNop()); err == nil {
		t.Error("未初始化数据库时应返回错误")
	}
}

func TestLoadCalendar(t *testing.T) {
	path := writeTemp(t, "cal.json", `{"odd_semester":{"examinations":{"t2_exam":{"start_date":"14 Oct"}},"holidays":[],"events":[]}}`)
	cal, err := LoadCalendar(path)
	if err != nil {
		t.Fatalf("LoadCalendar 失败: %v", err)
	}
	if _, ok := cal.OddSemester.Examinations.Find("t2_exam"); !ok {
		t.Error("未找到 t2_exam")
	}

	bad := writeTemp(t, "bad.json", `[1,2]`)
	if _, err := LoadCalendar(bad); !errors.Is(err, pkgerrors.ErrMalformedDocument) {
		t.Errorf("期望 ErrMalformedDocument，实际 %v", err)
	}
}
