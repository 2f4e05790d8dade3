package service

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"academic-info/config"
	"academic-info/internal/dto"
	"academic-info/internal/model"
	"academic-info/internal/source"
	"academic-info/internal/view"
)

// ── 校历模块业务错误 ──

var (
	ErrSemesterNotFound = errors.New("学期不存在，可选 odd / even")
	ErrExamTypeNotFound = errors.New("该学期没有这一类考试")
	ErrCalendarMissing  = errors.New("校历数据暂时无法获取")
)

// CalendarService 校历业务接口
type CalendarService interface {
	Reload() error
	Calendar() (*model.Calendar, error)
	GetSemester(semester string) (*dto.CalendarResponse, error)
	GetExam(semester, examType string) (*dto.ExamResponse, error)
	// ExamNotice 课表页考试提示块；超过截止日期或未配置时返回 false
	ExamNotice(now time.Time) (*dto.ExamResponse, bool)
}

type calendarService struct {
	path   string
	notice config.ExamNoticeConfig
	loc    *time.Location
	logger *zap.Logger

	mu  sync.RWMutex
	cal *model.Calendar
}

// NewCalendarService 创建 CalendarService 实例；首次加载失败不阻止启动
func NewCalendarService(cfg *config.Config, logger *zap.Logger) CalendarService {
	s := &calendarService{
		path:   cfg.Calendar.File,
		notice: cfg.Calendar.ExamNotice,
		loc:    cfg.App.Location(),
		logger: logger,
	}
	if err := s.Reload(); err != nil {
		logger.Warn("校历加载失败", zap.String("file", s.path), zap.Error(err))
	}
	return s
}

// Reload 重新读取校历文件，失败时保留已加载的数据
func (s *calendarService) Reload() error {
	cal, err := source.LoadCalendar(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cal = cal
	s.mu.Unlock()
	return nil
}

func (s *calendarService) Calendar() (*model.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cal == nil {
		return nil, ErrCalendarMissing
	}
	return s.cal, nil
}

func (s *calendarService) semester(kind string) (*model.Semester, error) {
	cal, err := s.Calendar()
	if err != nil {
		return nil, err
	}
	sem, ok := cal.Semester(kind)
	if !ok {
		return nil, ErrSemesterNotFound
	}
	return sem, nil
}

func (s *calendarService) GetSemester(kind string) (*dto.CalendarResponse, error) {
	sem, err := s.semester(kind)
	if err != nil {
		return nil, err
	}

	resp := &dto.CalendarResponse{
		Semester:     kind,
		Label:        Humanize(kind + "_semester"),
		ExamTypes:    sem.Examinations.Types(),
		Examinations: make([]dto.ExamResponse, 0, len(sem.Examinations)),
		Holidays:     make([]dto.DatedItemResponse, 0, len(sem.Holidays)),
		Events:       make([]dto.DatedItemResponse, 0, len(sem.Events)),
		Breaks:       make([]dto.BreakResponse, 0, len(sem.Breaks)),
	}
	for _, e := range sem.Examinations {
		resp.Examinations = append(resp.Examinations, examResponse(e))
	}
	for _, h := range sem.Holidays {
		resp.Holidays = append(resp.Holidays, dto.DatedItemResponse{Name: h.Name, Date: h.Date})
	}
	for _, e := range sem.Events {
		resp.Events = append(resp.Events, dto.DatedItemResponse{Name: e.Name, Date: e.Date})
	}
	for _, b := range sem.Breaks {
		resp.Breaks = append(resp.Breaks, dto.BreakResponse{Name: b.Name, StartDate: b.StartDate, EndDate: b.EndDate})
	}
	return resp, nil
}

func (s *calendarService) GetExam(kind, examType string) (*dto.ExamResponse, error) {
	sem, err := s.semester(kind)
	if err != nil {
		return nil, err
	}
	e, ok := sem.Examinations.Find(examType)
	if !ok {
		return nil, ErrExamTypeNotFound
	}
	resp := examResponse(e)
	return &resp, nil
}

func (s *calendarService) ExamNotice(now time.Time) (*dto.ExamResponse, bool) {
	until, ok := s.notice.UntilDate(s.loc)
	if !ok || now.After(until) {
		return nil, false
	}
	semester := s.notice.Semester
	if semester == "" {
		semester = view.DefaultSemester
	}
	examType := s.notice.ExamType
	if examType == "" {
		examType = view.DefaultExamType
	}
	e, err := s.GetExam(semester, examType)
	if err != nil {
		return nil, false
	}
	return e, true
}

func examResponse(e model.ExamSchedule) dto.ExamResponse {
	resp := dto.ExamResponse{
		Type:    e.Type,
		Label:   Humanize(e.Type),
		Details: make([]dto.ExamDetailResponse, 0, len(e.Details)),
	}
	for _, d := range e.Details {
		resp.Details = append(resp.Details, dto.ExamDetailResponse{
			Key:   d.Label,
			Label: Humanize(d.Label),
			Value: d.Value,
		})
	}
	return resp
}

// Humanize end_semester_exam → End Semester Exam
// Caser 有内部状态，不能跨 goroutine 共享
func Humanize(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}
