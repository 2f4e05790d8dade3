package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	pkgerrors "academic-info/pkg/errors"
)

// Session 一节课
// Time 形如 "9:00 - 10:30"（24 小时制，小时不补零）
type Session struct {
	Time    string `json:"time"`
	Subject string `json:"subject"`
	Room    string `json:"room"`
	Teacher string `json:"teacher"`
}

// UnmarshalJSON 宽松解析：教室号等字段允许是数字
func (s *Session) UnmarshalJSON(data []byte) error {
	var out Session
	err := walkObject(data, func(key string, raw json.RawMessage) error {
		val, err := rawString(raw)
		if err != nil {
			return fmt.Errorf("字段 %q: %w", key, err)
		}
		switch key {
		case "time":
			out.Time = val
		case "subject":
			out.Subject = val
		case "room":
			out.Room = val
		case "teacher":
			out.Teacher = val
		}
		return nil
	})
	if err != nil {
		return err
	}
	*s = out
	return nil
}

// DaySchedule 某个星期几的课程序列（按上课先后排列，源数据保证）
type DaySchedule struct {
	Day      string    `json:"day"`
	Sessions []Session `json:"sessions"`
}

// BatchTimetable 一个班级（batch）一周的课表
// Days 保持源文档中的星期顺序
type BatchTimetable struct {
	Batch string
	Days  []DaySchedule
}

const batchKey = "batch"

// DayNames 按源文档顺序返回可用的星期名
func (b *BatchTimetable) DayNames() []string {
	names := make([]string, 0, len(b.Days))
	for _, d := range b.Days {
		names = append(names, d.Day)
	}
	return names
}

// Day 按名称查找某天课表，精确匹配优先，其次忽略大小写
func (b *BatchTimetable) Day(name string) (DaySchedule, bool) {
	for _, d := range b.Days {
		if d.Day == name {
			return d, true
		}
	}
	for _, d := range b.Days {
		if strings.EqualFold(d.Day, name) {
			return d, true
		}
	}
	return DaySchedule{}, false
}

// Clone 深拷贝，编辑前调用，避免修改共享快照
func (b BatchTimetable) Clone() BatchTimetable {
	out := BatchTimetable{Batch: b.Batch, Days: make([]DaySchedule, len(b.Days))}
	for i, d := range b.Days {
		sessions := make([]Session, len(d.Sessions))
		copy(sessions, d.Sessions)
		out.Days[i] = DaySchedule{Day: d.Day, Sessions: sessions}
	}
	return out
}

// MarshalJSON 输出扁平结构 {"batch": "...", "Monday": [...], ...}
func (b BatchTimetable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeKey(&buf, batchKey); err != nil {
		return nil, err
	}
	id, err := json.Marshal(b.Batch)
	if err != nil {
		return nil, err
	}
	buf.Write(id)

	for _, d := range b.Days {
		buf.WriteByte(',')
		if err := writeKey(&buf, d.Day); err != nil {
			return nil, err
		}
		sessions := d.Sessions
		if sessions == nil {
			sessions = []Session{}
		}
		val, err := json.Marshal(sessions)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 解析扁平结构，除 batch 外的每个键都视为星期名
func (b *BatchTimetable) UnmarshalJSON(data []byte) error {
	var out BatchTimetable
	err := walkObject(data, func(key string, raw json.RawMessage) error {
		if key == batchKey {
			id, err := rawString(raw)
			if err != nil {
				return fmt.Errorf("batch 字段: %w", err)
			}
			out.Batch = id
			return nil
		}
		var sessions []Session
		if err := json.Unmarshal(raw, &sessions); err != nil {
			return fmt.Errorf("%s 的课程列表无效: %w", key, err)
		}
		if sessions == nil {
			sessions = []Session{}
		}
		// 重复的星期键：保留首次出现的位置，取最后一次的值
		for i := range out.Days {
			if out.Days[i].Day == key {
				out.Days[i].Sessions = sessions
				return nil
			}
		}
		out.Days = append(out.Days, DaySchedule{Day: key, Sessions: sessions})
		return nil
	})
	if err != nil {
		return err
	}
	*b = out
	return nil
}

// ── 文档级解析 / 序列化 ──

// ParseBatches 解析课表文档，支持三种形态：
//   - 顶层数组 [{"batch": "E16", "Monday": [...]}, ...]
//   - 分组对象 {"batches": {"E1": {"Monday": [...]}}}
//   - 单个扁平对象 {"batch": "E1", "Monday": [...]}
func ParseBatches(data []byte) ([]BatchTimetable, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: 文档为空", pkgerrors.ErrMalformedDocument)
	}

	switch trimmed[0] {
	case '[':
		var batches []BatchTimetable
		if err := json.Unmarshal(trimmed, &batches); err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrMalformedDocument, err)
		}
		if batches == nil {
			batches = []BatchTimetable{}
		}
		return batches, nil
	case '{':
		batches, grouped, err := parseGrouped(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrMalformedDocument, err)
		}
		if grouped {
			return batches, nil
		}
		var single BatchTimetable
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrMalformedDocument, err)
		}
		return []BatchTimetable{single}, nil
	default:
		return nil, fmt.Errorf("%w: 期望 JSON 数组或对象", pkgerrors.ErrMalformedDocument)
	}
}

// parseGrouped 尝试按 {"batches": {...}} 解析；没有 batches 键时 grouped=false
func parseGrouped(data []byte) ([]BatchTimetable, bool, error) {
	var groupRaw json.RawMessage
	err := walkObject(data, func(key string, raw json.RawMessage) error {
		if key == "batches" {
			groupRaw = raw
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if groupRaw == nil {
		return nil, false, nil
	}

	batches := []BatchTimetable{}
	err = walkObject(groupRaw, func(id string, raw json.RawMessage) error {
		var bt BatchTimetable
		if err := json.Unmarshal(raw, &bt); err != nil {
			return fmt.Errorf("batch %s: %w", id, err)
		}
		// 分组形态以外层键为准
		bt.Batch = id
		for i := range batches {
			if batches[i].Batch == id {
				batches[i] = bt
				return nil
			}
		}
		batches = append(batches, bt)
		return nil
	})
	if err != nil {
		return nil, true, err
	}
	return batches, true, nil
}

// MarshalBatches 序列化为顶层数组形态；pretty 为 true 时两空格缩进（用于批量编辑文本框）
func MarshalBatches(batches []BatchTimetable, pretty bool) ([]byte, error) {
	if batches == nil {
		batches = []BatchTimetable{}
	}
	if pretty {
		return json.MarshalIndent(batches, "", "  ")
	}
	return json.Marshal(batches)
}

// MarshalGrouped 序列化为 {"batches": {"E1": {...}}} 分组形态
func MarshalGrouped(batches []BatchTimetable) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"batches":{`)
	for i, b := range batches {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, b.Batch); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, d := range b.Days {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, d.Day); err != nil {
				return nil, err
			}
			sessions := d.Sessions
			if sessions == nil {
				sessions = []Session{}
			}
			val, err := json.Marshal(sessions)
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// CloneBatches 深拷贝整个快照
func CloneBatches(batches []BatchTimetable) []BatchTimetable {
	out := make([]BatchTimetable, len(batches))
	for i, b := range batches {
		out[i] = b.Clone()
	}
	return out
}
