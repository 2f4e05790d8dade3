package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

const testCalendarDoc = `{
  "odd_semester": {
    "examinations": {
      "t1_exam": {"start_date": "2 Sep 2024", "end_date": "6 Sep 2024"},
      "t2_exam": {"start_date": "14 Oct 2024", "end_date": "18 Oct 2024", "result": "25 Oct 2024"},
      "end_semester_exam": {"start_date": "25 Nov 2024", "end_date": "6 Dec 2024"}
    },
    "holidays": [{"name": "Independence Day", "date": "15 Aug 2024"}],
    "events": [{"name": "Tech Fest", "date": "20 Sep 2024"}],
    "breaks": [{"name": "Winter Break", "start_date": "16 Dec 2024", "end_date": "31 Dec 2024"}]
  },
  "even_semester": {
    "examinations": {"t1_exam": {"start_date": "3 Feb 2025"}},
    "holidays": [],
    "events": []
  }
}`

func TestCalendar_Unmarshal(t *testing.T) {
	var cal Calendar
	if err := json.Unmarshal([]byte(testCalendarDoc), &cal); err != nil {
		t.Fatalf("解析校历失败: %v", err)
	}

	odd, ok := cal.Semester(SemesterOdd)
	if !ok {
		t.Fatal("未找到 odd 学期")
	}
	if got := odd.Examinations.Types(); !reflect.DeepEqual(got, []string{"t1_exam", "t2_exam", "end_semester_exam"}) {
		t.Errorf("考试类型应保序，实际 %v", got)
	}

	t2, ok := odd.Examinations.Find("t2_exam")
	if !ok {
		t.Fatal("未找到 t2_exam")
	}
	wantLabels := []string{"start_date", "end_date", "result"}
	for i, d := range t2.Details {
		if d.Label != wantLabels[i] {
			t.Errorf("明细顺序错误: 第 %d 项期望 %s，实际 %s", i, wantLabels[i], d.Label)
		}
	}
	if len(odd.Breaks) != 1 || odd.Breaks[0].EndDate != "31 Dec 2024" {
		t.Errorf("假期区间解析错误: %+v", odd.Breaks)
	}

	if _, ok := cal.Semester("summer"); ok {
		t.Error("未知学期不应返回")
	}
}

func TestCalendar_RoundTrip(t *testing.T) {
	var cal Calendar
	if err := json.Unmarshal([]byte(testCalendarDoc), &cal); err != nil {
		t.Fatalf("解析校历失败: %v", err)
	}
	text, err := json.Marshal(cal)
	if err != nil {
		t.Fatalf("序列化校历失败: %v", err)
	}
	var back Calendar
	if err := json.Unmarshal(text, &back); err != nil {
		t.Fatalf("回读失败: %v", err)
	}
	if !reflect.DeepEqual(cal, back) {
		t.Errorf("校历往返不一致:\n%+v\n%+v", cal, back)
	}
}

func TestExaminations_DuplicateKeysLastWins(t *testing.T) {
	var e Examinations
	doc := `{"t1_exam": {"start_date": "1 Sep", "start_date": "2 Sep"}, "t2_exam": {}, "t1_exam": {"end_date": "6 Sep"}}`
	if err := json.Unmarshal([]byte(doc), &e); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if got := e.Types(); !reflect.DeepEqual(got, []string{"t1_exam", "t2_exam"}) {
		t.Fatalf("考试类型应去重且保持首次位置，实际 %v", got)
	}
	t1, _ := e.Find("t1_exam")
	if len(t1.Details) != 1 || t1.Details[0].Label != "end_date" {
		t.Errorf("重复考试类型应取最后一次的值，实际 %+v", t1.Details)
	}
}
