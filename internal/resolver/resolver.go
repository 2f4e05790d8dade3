// Package resolver 根据当前时刻在某天的课程序列中定位"正在上的课"。
//
// 规则：
//   - time 字段按 " - " 拆成起止两段，每段按 ":" 拆成整数时、分
//   - 区间为左闭右开 [start, end)：恰在开始时刻算在内，恰在结束时刻不算
//   - 多个区间同时命中时取列表中第一个
//   - 格式错误的课程直接跳过，不影响后续课程
//   - 仅比较一天内的时刻，不涉及日期与跨零点区间
package resolver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"academic-info/internal/model"
)

const rangeSeparator = " - "

var (
	ErrMissingSeparator = errors.New("时间段缺少分隔符")
	ErrInvalidClock     = errors.New("时刻格式无效")
	ErrEmptyRange       = errors.New("结束时刻不晚于开始时刻")
)

// Clock 一天内的时刻（分钟精度）
type Clock struct {
	Hour   int
	Minute int
}

// At 取 t 的时刻部分
func At(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// Minutes 自零点起的分钟数
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// String 按 HH:MM 输出
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock 解析 "9:05" / "09:05"
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("%w: %q 超出范围", ErrInvalidClock, s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// Range 左闭右开的时间段
type Range struct {
	Start Clock
	End   Clock
}

// Contains 判断 c 是否落在 [Start, End)
func (r Range) Contains(c Clock) bool {
	m := c.Minutes()
	return m >= r.Start.Minutes() && m < r.End.Minutes()
}

// ParseRange 解析 "9:00 - 10:30"
func ParseRange(s string) (Range, error) {
	startTok, endTok, ok := strings.Cut(s, rangeSeparator)
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrMissingSeparator, s)
	}
	start, err := ParseClock(startTok)
	if err != nil {
		return Range{}, err
	}
	end, err := ParseClock(endTok)
	if err != nil {
		return Range{}, err
	}
	if end.Minutes() <= start.Minutes() {
		return Range{}, fmt.Errorf("%w: %q", ErrEmptyRange, s)
	}
	return Range{Start: start, End: end}, nil
}

// Match 命中结果
type Match struct {
	Index   int
	Session model.Session
	Range   Range
}

// Current 返回 c 所在的课程；没有命中时 ok=false，这是正常结果而非错误
func Current(sessions []model.Session, c Clock) (Match, bool) {
	for i, s := range sessions {
		r, err := ParseRange(s.Time)
		if err != nil {
			continue
		}
		if r.Contains(c) {
			return Match{Index: i, Session: s, Range: r}, true
		}
	}
	return Match{}, false
}

// Next 返回 c 之后最早开始的课程，用于"下一节"提示
func Next(sessions []model.Session, c Clock) (Match, bool) {
	best := Match{Index: -1}
	for i, s := range sessions {
		r, err := ParseRange(s.Time)
		if err != nil || r.Start.Minutes() <= c.Minutes() {
			continue
		}
		if best.Index < 0 || r.Start.Minutes() < best.Range.Start.Minutes() {
			best = Match{Index: i, Session: s, Range: r}
		}
	}
	return best, best.Index >= 0
}

// Resolver 带时钟的解析器，调用方未给出时刻时读取环境时钟
type Resolver struct {
	now func() time.Time
	loc *time.Location
}

// New 创建 Resolver；now 为 nil 时使用 time.Now
func New(now func() time.Time, loc *time.Location) *Resolver {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{now: now, loc: loc}
}

// Now 配置时区下的当前时间
func (r *Resolver) Now() time.Time {
	return r.now().In(r.loc)
}

// Location 配置时区
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve at 为 nil 时使用当前时刻
func (r *Resolver) Resolve(sessions []model.Session, at *Clock) (Match, Clock, bool) {
	c := At(r.Now())
	if at != nil {
		c = *at
	}
	m, ok := Current(sessions, c)
	return m, c, ok
}

// Today 当前星期的英文全称，如 "Monday"
func (r *Resolver) Today() string {
	return r.Now().Weekday().String()
}

// PickDay 选择要展示的星期：请求的星期存在则用之，否则回退到数据中的第一个
// requested 为空时以今天为准；没有任何可用日时返回 false
func PickDay(b *model.BatchTimetable, requested, today string) (string, bool) {
	if len(b.Days) == 0 {
		return "", false
	}
	want := requested
	if want == "" {
		want = today
	}
	if d, ok := b.Day(want); ok {
		return d.Day, true
	}
	return b.Days[0].Day, true
}
