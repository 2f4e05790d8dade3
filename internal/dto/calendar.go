package dto

// ── 校历响应 ──

// ExamDetailResponse 考试安排明细
type ExamDetailResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// ExamResponse 某类考试
type ExamResponse struct {
	Type    string               `json:"type"`
	Label   string               `json:"label"`
	Details []ExamDetailResponse `json:"details"`
}

// DatedItemResponse 假期 / 活动
type DatedItemResponse struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

// BreakResponse 假期区间
type BreakResponse struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// CalendarResponse 单个学期
type CalendarResponse struct {
	Semester     string              `json:"semester"`
	Label        string              `json:"label"`
	ExamTypes    []string            `json:"exam_types"`
	Examinations []ExamResponse      `json:"examinations"`
	Holidays     []DatedItemResponse `json:"holidays"`
	Events       []DatedItemResponse `json:"events"`
	Breaks       []BreakResponse     `json:"breaks"`
}
