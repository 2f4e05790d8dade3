// Package view 页面视图状态与纯函数状态迁移。
//
// 浏览器每次交互以 ?do=<action>&v=<value> 提交，服务端用 Reduce 计算新状态并按客户端持久化，
// 再据此渲染页面。非法取值不改变状态。
package view

// 页面
const (
	PageTimetable = "timetable"
	PageCalendar  = "calendar"
)

// 校历标签页
const (
	TabExams    = "exams"
	TabHolidays = "holidays"
	TabEvents   = "events"
)

// 学期
const (
	SemesterOdd  = "odd"
	SemesterEven = "even"
)

// 默认选择
const (
	DefaultTab      = TabHolidays
	DefaultSemester = SemesterOdd
	DefaultExamType = "t2_exam"
)

// ExamTypes 可选考试类型（展示顺序）
var ExamTypes = []string{"t1_exam", "t2_exam", "end_semester_exam"}

// Tabs 校历标签页（展示顺序）
var Tabs = []string{TabExams, TabHolidays, TabEvents}

// State 单个客户端的视图状态，按值传递，不可原地修改
type State struct {
	Page          string `json:"page"`
	Tab           string `json:"tab"`
	Semester      string `json:"semester"`
	ExamType      string `json:"exam_type"`
	Batch         string `json:"batch"`
	Day           string `json:"day"` // 为空表示跟随当天
	DarkMode      bool   `json:"dark_mode"`
	ShowExamBlock bool   `json:"show_exam_block"`
}

// Default 初始状态
func Default() State {
	return State{
		Page:          PageTimetable,
		Tab:           DefaultTab,
		Semester:      DefaultSemester,
		ExamType:      DefaultExamType,
		ShowExamBlock: true,
	}
}

// Normalize 修正持久化数据中的非法取值
func (s State) Normalize() State {
	d := Default()
	if s.Page != PageTimetable && s.Page != PageCalendar {
		s.Page = d.Page
	}
	if !contains(Tabs, s.Tab) {
		s.Tab = d.Tab
	}
	if s.Semester != SemesterOdd && s.Semester != SemesterEven {
		s.Semester = d.Semester
	}
	if !contains(ExamTypes, s.ExamType) {
		s.ExamType = d.ExamType
	}
	return s
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
