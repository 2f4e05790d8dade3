package view

import "strings"

// ActionKind 状态迁移类型
type ActionKind string

const (
	ActTogglePage      ActionKind = "toggle_page"
	ActToggleDark      ActionKind = "toggle_dark"
	ActSelectTab       ActionKind = "select_tab"
	ActToggleSemester  ActionKind = "toggle_semester"
	ActSelectExam      ActionKind = "select_exam"
	ActSelectBatch     ActionKind = "select_batch"
	ActSelectDay       ActionKind = "select_day"
	ActToggleExamBlock ActionKind = "toggle_exam_block"
)

var knownActions = map[ActionKind]bool{
	ActTogglePage:      true,
	ActToggleDark:      true,
	ActSelectTab:       true,
	ActToggleSemester:  true,
	ActSelectExam:      true,
	ActSelectBatch:     true,
	ActSelectDay:       true,
	ActToggleExamBlock: true,
}

// Action 一次用户交互
type Action struct {
	Kind  ActionKind
	Value string
}

// ParseAction 解析 ?do=&v=；未知动作返回 false
func ParseAction(do, value string) (Action, bool) {
	kind := ActionKind(strings.TrimSpace(do))
	if !knownActions[kind] {
		return Action{}, false
	}
	return Action{Kind: kind, Value: strings.TrimSpace(value)}, true
}

// Reduce 计算新状态；s 不会被修改
func Reduce(s State, a Action) State {
	switch a.Kind {
	case ActTogglePage:
		if s.Page == PageCalendar {
			s.Page = PageTimetable
		} else {
			s.Page = PageCalendar
		}
	case ActToggleDark:
		s.DarkMode = !s.DarkMode
	case ActSelectTab:
		if contains(Tabs, a.Value) {
			s.Tab = a.Value
		}
	case ActToggleSemester:
		if s.Semester == SemesterEven {
			s.Semester = SemesterOdd
		} else {
			s.Semester = SemesterEven
		}
	case ActSelectExam:
		if contains(ExamTypes, a.Value) {
			s.ExamType = a.Value
		}
	case ActSelectBatch:
		if a.Value != "" && a.Value != s.Batch {
			s.Batch = a.Value
			// 换班级后回到当天
			s.Day = ""
		}
	case ActSelectDay:
		if a.Value != "" {
			s.Day = a.Value
		}
	case ActToggleExamBlock:
		s.ShowExamBlock = !s.ShowExamBlock
	}
	return s
}
