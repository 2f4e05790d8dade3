package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"academic-info/internal/dto"
	"academic-info/internal/model"
	"academic-info/internal/resolver"
	"academic-info/internal/source"
	pkgerrors "academic-info/pkg/errors"
)

// ── 课表模块业务错误 ──

var (
	ErrBatchNotFound        = errors.New("班级不存在")
	ErrDayNotFound          = errors.New("该班级没有这一天的课表")
	ErrSessionIndex         = errors.New("课程序号超出范围")
	ErrTimetableUnavailable = errors.New("课表数据暂时无法获取")
	ErrReadOnlySource       = errors.New("当前数据源不允许编辑")
	ErrInvalidClock         = errors.New("时刻格式应为 HH:MM")
)

const snapshotCacheKey = "timetable"

// Snapshot 某一时刻的完整课表（只读，不可修改）
type Snapshot struct {
	Batches   []model.BatchTimetable
	FetchedAt time.Time
	Stale     bool // 最近一次刷新失败，这是上一次成功的数据
}

// Find 按班级标识查找
func (s *Snapshot) Find(batch string) (*model.BatchTimetable, bool) {
	for i := range s.Batches {
		if s.Batches[i].Batch == batch {
			return &s.Batches[i], true
		}
	}
	return nil, false
}

// TimetableService 课表业务接口
//
// 设计说明：
//   - 快照整体替换（copy-on-write），读者拿到的切片不会被并发修改
//   - 缓存 TTL 内直接返回快照；过期后重新拉取，拉取失败保留上一次成功的数据
//   - 数据变更时通知订阅者（实时推送 Hub）
type TimetableService interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	Refresh(ctx context.Context) error
	Capability() source.Capability
	Resolver() *resolver.Resolver

	ListBatches(ctx context.Context) (*dto.BatchListResponse, error)
	GetBatch(ctx context.Context, batch string) (*model.BatchTimetable, error)
	GetDay(ctx context.Context, batch, day string, at *resolver.Clock) (*dto.DayResponse, error)
	Current(ctx context.Context, batch, day string, at *resolver.Clock) (*dto.CurrentResponse, error)

	// Replace 持久化并替换整份课表（本地可编辑数据源）
	Replace(ctx context.Context, batches []model.BatchTimetable, updatedBy string) error
	// ReplaceBatch 同 Replace，但只有 batchID 发生了变化；数据源支持时只写这一个班级
	ReplaceBatch(ctx context.Context, batches []model.BatchTimetable, batchID, updatedBy string) error
	// Install 仅替换内存快照（远程网关已确认写入）
	Install(batches []model.BatchTimetable)

	Subscribe() (<-chan struct{}, func())
}

type timetableService struct {
	src      source.Source
	resolver *resolver.Resolver
	cache    *gocache.Cache
	ttl      time.Duration
	logger   *zap.Logger

	fetchMu sync.Mutex

	mu   sync.RWMutex
	last *Snapshot

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

// NewTimetableService 创建 TimetableService 实例
func NewTimetableService(src source.Source, res *resolver.Resolver, ttl time.Duration, logger *zap.Logger) TimetableService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &timetableService{
		src:      src,
		resolver: res,
		cache:    gocache.New(ttl, 2*ttl),
		ttl:      ttl,
		logger:   logger,
		subs:     make(map[int]chan struct{}),
	}
}

func (s *timetableService) Capability() source.Capability { return s.src.Capability() }
func (s *timetableService) Resolver() *resolver.Resolver { return s.resolver }

// ═══════════════════════════════════════════════════════════
// 快照
// ═══════════════════════════════════════════════════════════

func (s *timetableService) Snapshot(ctx context.Context) (*Snapshot, error) {
	if v, ok := s.cache.Get(snapshotCacheKey); ok {
		return v.(*Snapshot), nil
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	// 等锁期间可能已被其他请求刷新
	if v, ok := s.cache.Get(snapshotCacheKey); ok {
		return v.(*Snapshot), nil
	}
	return s.fetchLocked(ctx)
}

// Refresh 忽略缓存立即拉取
func (s *timetableService) Refresh(ctx context.Context) error {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	snap, err := s.fetchLocked(ctx)
	if err != nil {
		return err
	}
	if snap.Stale {
		return fmt.Errorf("%w: 沿用上一次成功的数据", ErrTimetableUnavailable)
	}
	return nil
}

// fetchLocked 调用方需持有 fetchMu
func (s *timetableService) fetchLocked(ctx context.Context) (*Snapshot, error) {
	batches, err := s.src.Fetch(ctx)
	if err != nil {
		s.mu.RLock()
		last := s.last
		s.mu.RUnlock()

		if last == nil {
			s.logger.Error("拉取课表失败", zap.String("source", s.src.Name()), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrTimetableUnavailable, err)
		}
		s.logger.Warn("拉取课表失败，沿用上一次成功的数据",
			zap.String("source", s.src.Name()),
			zap.Time("fetched_at", last.FetchedAt),
			zap.Error(err),
		)
		stale := &Snapshot{Batches: last.Batches, FetchedAt: last.FetchedAt, Stale: true}
		// 短暂缓存，避免上游故障期间每个请求都重试
		s.cache.Set(snapshotCacheKey, stale, s.retryAfter())
		return stale, nil
	}

	s.install(batches)
	return s.current(), nil
}

func (s *timetableService) retryAfter() time.Duration {
	if s.ttl < 30*time.Second {
		return s.ttl
	}
	return 30 * time.Second
}

func (s *timetableService) install(batches []model.BatchTimetable) {
	snap := &Snapshot{Batches: batches, FetchedAt: time.Now()}
	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()
	s.cache.Set(snapshotCacheKey, snap, gocache.DefaultExpiration)
	s.notify()
}

func (s *timetableService) current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *timetableService) Install(batches []model.BatchTimetable) {
	s.install(model.CloneBatches(batches))
}

// ═══════════════════════════════════════════════════════════
// 查询
// ═══════════════════════════════════════════════════════════

func (s *timetableService) ListBatches(ctx context.Context) (*dto.BatchListResponse, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := &dto.BatchListResponse{
		Batches:    make([]dto.BatchSummary, 0, len(snap.Batches)),
		Capability: string(s.src.Capability()),
		Stale:      snap.Stale,
	}
	for i := range snap.Batches {
		out.Batches = append(out.Batches, dto.BatchSummary{
			Batch: snap.Batches[i].Batch,
			Days:  snap.Batches[i].DayNames(),
		})
	}
	return out, nil
}

func (s *timetableService) GetBatch(ctx context.Context, batch string) (*model.BatchTimetable, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	b, ok := snap.Find(batch)
	if !ok {
		return nil, ErrBatchNotFound
	}
	return b, nil
}

// GetDay 选择星期（请求值 > 今天 > 第一个可用日），并定位当前与下一节课
func (s *timetableService) GetDay(ctx context.Context, batch, day string, at *resolver.Clock) (*dto.DayResponse, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	b, ok := snap.Find(batch)
	if !ok {
		return nil, ErrBatchNotFound
	}

	picked, ok := resolver.PickDay(b, day, s.resolver.Today())
	if !ok {
		return nil, ErrDayNotFound
	}
	schedule, _ := b.Day(picked)

	match, clock, found := s.resolver.Resolve(schedule.Sessions, at)

	resp := &dto.DayResponse{
		Batch:     b.Batch,
		Day:       picked,
		Requested: day,
		FellBack:  day != "" && !strings.EqualFold(day, picked),
		Days:      b.DayNames(),
		At:        clock.String(),
		Sessions:  make([]dto.SessionResponse, 0, len(schedule.Sessions)),
		Stale:     snap.Stale,
	}
	for i, sess := range schedule.Sessions {
		resp.Sessions = append(resp.Sessions, dto.NewSessionResponse(i, sess))
	}
	if found {
		cur := dto.NewSessionResponse(match.Index, match.Session)
		resp.Current = &cur
	}
	if next, ok := resolver.Next(schedule.Sessions, clock); ok {
		n := dto.NewSessionResponse(next.Index, next.Session)
		resp.Next = &n
	}
	return resp, nil
}

func (s *timetableService) Current(ctx context.Context, batch, day string, at *resolver.Clock) (*dto.CurrentResponse, error) {
	d, err := s.GetDay(ctx, batch, day, at)
	if err != nil {
		return nil, err
	}
	return &dto.CurrentResponse{Batch: d.Batch, Day: d.Day, At: d.At, Current: d.Current}, nil
}

// ParseAt 解析查询参数中的时刻；空串表示使用当前时刻
func ParseAt(raw string) (*resolver.Clock, error) {
	if raw == "" {
		return nil, nil
	}
	c, err := resolver.ParseClock(raw)
	if err != nil {
		return nil, ErrInvalidClock
	}
	return &c, nil
}

// ═══════════════════════════════════════════════════════════
// 写入
// ═══════════════════════════════════════════════════════════

func (s *timetableService) Replace(ctx context.Context, batches []model.BatchTimetable, updatedBy string) error {
	return s.replace(ctx, batches, "", updatedBy)
}

func (s *timetableService) ReplaceBatch(ctx context.Context, batches []model.BatchTimetable, batchID, updatedBy string) error {
	return s.replace(ctx, batches, batchID, updatedBy)
}

// replace batchID 为空表示整份覆盖
func (s *timetableService) replace(ctx context.Context, batches []model.BatchTimetable, batchID, updatedBy string) error {
	if !s.src.Capability().CanEdit() {
		return ErrReadOnlySource
	}
	w, ok := s.src.(source.Writer)
	if !ok {
		return ErrReadOnlySource
	}

	owned := model.CloneBatches(batches)
	if err := s.save(ctx, w, owned, batchID, updatedBy); err != nil {
		if errors.Is(err, pkgerrors.ErrReadOnly) {
			return ErrReadOnlySource
		}
		s.logger.Error("保存课表失败", zap.String("source", s.src.Name()), zap.Error(err))
		return err
	}

	s.fetchMu.Lock()
	s.install(owned)
	s.fetchMu.Unlock()

	if batchID != "" {
		s.logger.Info("班级课表已修改", zap.String("batch", batchID), zap.String("updated_by", updatedBy))
	} else {
		s.logger.Info("课表已覆盖", zap.Int("batches", len(owned)), zap.String("updated_by", updatedBy))
	}
	return nil
}

func (s *timetableService) save(ctx context.Context, w source.Writer, batches []model.BatchTimetable, batchID, updatedBy string) error {
	if bw, ok := s.src.(source.BatchWriter); ok && batchID != "" {
		for i := range batches {
			if batches[i].Batch == batchID {
				return bw.SaveBatch(ctx, batches[i], updatedBy)
			}
		}
		return ErrBatchNotFound
	}
	return w.Save(ctx, batches, updatedBy)
}

// ═══════════════════════════════════════════════════════════
// 订阅
// ═══════════════════════════════════════════════════════════

// Subscribe 返回变更通知通道与取消函数；通道容量 1，多次变更合并为一次
func (s *timetableService) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *timetableService) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
