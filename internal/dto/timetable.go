package dto

import (
	"fmt"
	"strings"

	"academic-info/internal/model"
)

// ── 课表请求 ──

// DayQuery 按天查询参数；At 为 HH:MM，为空时取服务器当前时刻
type DayQuery struct {
	Day string `form:"day"`
	At  string `form:"at" binding:"omitempty,max=5"`
}

// SessionPatchRequest 单节课字段级编辑，nil 字段保持不变
type SessionPatchRequest struct {
	Time    *string `json:"time"    binding:"omitempty,max=32,timerange"`
	Subject *string `json:"subject" binding:"omitempty,max=200"`
	Room    *string `json:"room"    binding:"omitempty,max=64"`
	Teacher *string `json:"teacher" binding:"omitempty,max=200"`
}

// Validate 至少需要修改一个字段
func (r *SessionPatchRequest) Validate() error {
	if r.Time == nil && r.Subject == nil && r.Room == nil && r.Teacher == nil {
		return fmt.Errorf("至少需要提供 time/subject/room/teacher 中的一个字段")
	}
	return nil
}

// Apply 将修改写入 s
func (r *SessionPatchRequest) Apply(s *model.Session) {
	if r.Time != nil {
		s.Time = *r.Time
	}
	if r.Subject != nil {
		s.Subject = *r.Subject
	}
	if r.Room != nil {
		s.Room = *r.Room
	}
	if r.Teacher != nil {
		s.Teacher = *r.Teacher
	}
}

// ── 课表响应 ──

// BatchSummary 班级及其可用星期（源文档顺序）
type BatchSummary struct {
	Batch string   `json:"batch"`
	Days  []string `json:"days"`
}

// BatchListResponse 班级列表
type BatchListResponse struct {
	Batches    []BatchSummary `json:"batches"`
	Capability string         `json:"capability"`
	Stale      bool           `json:"stale"` // 数据源刷新失败，当前为上一次成功的数据
}

// SessionResponse 单节课
type SessionResponse struct {
	Index    int      `json:"index"`
	Time     string   `json:"time"`
	Subject  string   `json:"subject"`
	Subjects []string `json:"subjects"` // "A, B" 形式的多科目拆分结果
	Room     string   `json:"room"`
	Teacher  string   `json:"teacher"`
}

// NewSessionResponse 构造 SessionResponse
func NewSessionResponse(index int, s model.Session) SessionResponse {
	return SessionResponse{
		Index:    index,
		Time:     s.Time,
		Subject:  s.Subject,
		Subjects: SplitSubjects(s.Subject),
		Room:     s.Room,
		Teacher:  s.Teacher,
	}
}

// SplitSubjects 按逗号拆分多科目文本
func SplitSubjects(subject string) []string {
	parts := strings.Split(subject, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DayResponse 某班级某天的课表及当前课程
type DayResponse struct {
	Batch     string            `json:"batch"`
	Day       string            `json:"day"`
	Requested string            `json:"requested,omitempty"`
	FellBack  bool              `json:"fell_back"` // 请求的星期不存在，已回退到第一个可用日
	Days      []string          `json:"days"`
	At        string            `json:"at"`
	Sessions  []SessionResponse `json:"sessions"`
	Current   *SessionResponse  `json:"current"`
	Next      *SessionResponse  `json:"next,omitempty"`
	Stale     bool              `json:"stale"`
}

// CurrentResponse 当前课程；无课时 Current 为 null
type CurrentResponse struct {
	Batch   string           `json:"batch"`
	Day     string           `json:"day"`
	At      string           `json:"at"`
	Current *SessionResponse `json:"current"`
}
