package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Calendar 校历，对应 academicCalendar.json
type Calendar struct {
	OddSemester  Semester `json:"odd_semester"`
	EvenSemester Semester `json:"even_semester"`
}

// 学期标识
const (
	SemesterOdd  = "odd"
	SemesterEven = "even"
)

// Semester 按标识取学期
func (c *Calendar) Semester(kind string) (*Semester, bool) {
	switch kind {
	case SemesterOdd:
		return &c.OddSemester, true
	case SemesterEven:
		return &c.EvenSemester, true
	}
	return nil, false
}

// Semester 单个学期的考试、假期、活动与假期区间
type Semester struct {
	Examinations Examinations `json:"examinations"`
	Holidays     []DatedItem  `json:"holidays"`
	Events       []DatedItem  `json:"events"`
	Breaks       []Break      `json:"breaks,omitempty"`
}

// DatedItem 假期/活动条目，日期为源数据原文
type DatedItem struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

// Break 假期区间（如寒暑假）
type Break struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// ExamDetail 考试安排中的一项，例如 start_date → "10 Oct 2024"
type ExamDetail struct {
	Label string
	Value string
}

// ExamSchedule 某类考试（t1_exam / t2_exam / end_semester_exam）
type ExamSchedule struct {
	Type    string
	Details []ExamDetail
}

// Examinations 考试类型 → 明细，保持源文档顺序
type Examinations []ExamSchedule

// Find 按考试类型查找
func (e Examinations) Find(examType string) (ExamSchedule, bool) {
	for _, s := range e {
		if s.Type == examType {
			return s, true
		}
	}
	return ExamSchedule{}, false
}

// Types 返回全部考试类型
func (e Examinations) Types() []string {
	out := make([]string, 0, len(e))
	for _, s := range e {
		out = append(out, s.Type)
	}
	return out
}

// UnmarshalJSON 保序解析两层对象
func (e *Examinations) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*e = nil
		return nil
	}
	out := Examinations{}
	err := walkObject(data, func(examType string, raw json.RawMessage) error {
		sched := ExamSchedule{Type: examType}
		err := walkObject(raw, func(label string, val json.RawMessage) error {
			s, err := rawString(val)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", examType, label, err)
			}
			for i := range sched.Details {
				if sched.Details[i].Label == label {
					sched.Details[i].Value = s
					return nil
				}
			}
			sched.Details = append(sched.Details, ExamDetail{Label: label, Value: s})
			return nil
		})
		if err != nil {
			return err
		}
		for i := range out {
			if out[i].Type == examType {
				out[i] = sched
				return nil
			}
		}
		out = append(out, sched)
		return nil
	})
	if err != nil {
		return err
	}
	*e = out
	return nil
}

// MarshalJSON 保序输出
func (e Examinations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, s.Type); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, d := range s.Details {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, d.Label); err != nil {
				return nil, err
			}
			v, err := json.Marshal(d.Value)
			if err != nil {
				return nil, err
			}
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
