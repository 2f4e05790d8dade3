package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"academic-info/internal/model"
	"academic-info/internal/resolver"
)

// ── 导出模块业务错误 ──

var (
	ErrExportEmpty        = errors.New("没有可导出的课程")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportFile 导出结果
type ExportFile struct {
	Buf         *bytes.Buffer
	Filename    string
	ContentType string
}

// 导出文件的 Content-Type
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
//   - PDF：按星期分段的文本排版，超出一页自动分页
//   - XLSX：行为时间段、列为星期的周课表
//   - ICS：每节课为每周重复的事件；校历的假期/活动为全天事件
type ExportService interface {
	BatchPDF(ctx context.Context, batch string) (*ExportFile, error)
	BatchXLSX(ctx context.Context, batch string) (*ExportFile, error)
	BatchICS(ctx context.Context, batch string) (*ExportFile, error)
	CalendarICS(ctx context.Context, semester string) (*ExportFile, error)
}

type exportService struct {
	timetable TimetableService
	calendar  CalendarService
	logger    *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(timetable TimetableService, calendar CalendarService, logger *zap.Logger) ExportService {
	return &exportService{timetable: timetable, calendar: calendar, logger: logger}
}

func countSessions(b *model.BatchTimetable) int {
	n := 0
	for _, d := range b.Days {
		n += len(d.Sessions)
	}
	return n
}

// ═══════════════════════════════════════════════════════════
// BatchPDF
// ═══════════════════════════════════════════════════════════

func (s *exportService) BatchPDF(ctx context.Context, batch string) (*ExportFile, error) {
	b, err := s.timetable.GetBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	if countSessions(b) == 0 {
		return nil, ErrExportEmpty
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Timetable %s", b.Batch), true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Timetable - "+b.Batch), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	widths := []float64{35, 75, 30, 40}
	for _, d := range b.Days {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetFillColor(68, 114, 196)
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(0, 8, tr(d.Day), "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)

		if len(d.Sessions) == 0 {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.CellFormat(0, 7, "No classes", "", 1, "L", false, 0, "")
			pdf.Ln(2)
			continue
		}

		pdf.SetFont("Helvetica", "B", 10)
		for i, h := range []string{"Time", "Subject", "Room", "Teacher"} {
			pdf.CellFormat(widths[i], 7, h, "B", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 10)
		for _, sess := range d.Sessions {
			cells := []string{sess.Time, sess.Subject, sess.Room, sess.Teacher}
			for i, c := range cells {
				pdf.CellFormat(widths[i], 7, tr(c), "", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(3)
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		s.logger.Error("生成 PDF 失败", zap.String("batch", batch), zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	return &ExportFile{Buf: buf, Filename: fmt.Sprintf("timetable_%s.pdf", b.Batch), ContentType: ContentTypePDF}, nil
}

// ═══════════════════════════════════════════════════════════
// BatchXLSX
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 标题行：班级
//   - 表头：时间 | 星期（源文档顺序）
//   - 单元格：科目 / 教室 / 教师，多行文本

func (s *exportService) BatchXLSX(ctx context.Context, batch string) (*ExportFile, error) {
	b, err := s.timetable.GetBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	if countSessions(b) == 0 {
		return nil, ErrExportEmpty
	}

	// 1. 收集时间段，按开始时刻排序；无法解析的时间段排在最后并保持原文
	slotSeen := make(map[string]bool)
	var slots []string
	for _, d := range b.Days {
		for _, sess := range d.Sessions {
			if !slotSeen[sess.Time] {
				slotSeen[sess.Time] = true
				slots = append(slots, sess.Time)
			}
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		ri, ei := resolver.ParseRange(slots[i])
		rj, ej := resolver.ParseRange(slots[j])
		switch {
		case ei != nil && ej != nil:
			return false
		case ei != nil:
			return false
		case ej != nil:
			return true
		}
		return ri.Start.Minutes() < rj.Start.Minutes()
	})

	// 2. 索引 "day|time" → 单元格文本
	cellText := make(map[string]string)
	for _, d := range b.Days {
		for _, sess := range d.Sessions {
			key := d.Day + "|" + sess.Time
			text := sessionCellText(sess)
			if prev, ok := cellText[key]; ok {
				text = prev + "\n" + text
			}
			cellText[key] = text
		}
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := sheetNameFor(b.Batch)
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		s.logger.Error("创建工作表失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	f.SetColWidth(sheetName, "A", "A", 16)
	for i := range b.Days {
		col, _ := excelize.ColumnNumberToName(2 + i)
		f.SetColWidth(sheetName, col, col, 26)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	bodyStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})

	lastCol, _ := excelize.ColumnNumberToName(1 + len(b.Days))
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Timetable - %s", b.Batch))
	f.MergeCell(sheetName, "A1", lastCol+"1")
	f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle)

	f.SetCellValue(sheetName, "A2", "Time")
	for i, d := range b.Days {
		c, _ := excelize.CoordinatesToCellName(2+i, 2)
		f.SetCellValue(sheetName, c, d.Day)
	}
	f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle)

	row := 3
	for _, slot := range slots {
		a, _ := excelize.CoordinatesToCellName(1, row)
		f.SetCellValue(sheetName, a, slot)
		for i, d := range b.Days {
			c, _ := excelize.CoordinatesToCellName(2+i, row)
			if text, ok := cellText[d.Day+"|"+slot]; ok {
				f.SetCellValue(sheetName, c, text)
			} else {
				f.SetCellValue(sheetName, c, "-")
			}
		}
		row++
	}
	if row > 3 {
		end, _ := excelize.CoordinatesToCellName(1+len(b.Days), row-1)
		f.SetCellStyle(sheetName, "A3", end, bodyStyle)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	return &ExportFile{Buf: buf, Filename: fmt.Sprintf("timetable_%s.xlsx", b.Batch), ContentType: ContentTypeXLSX}, nil
}

func sessionCellText(s model.Session) string {
	parts := []string{s.Subject}
	if s.Room != "" {
		parts = append(parts, s.Room)
	}
	if s.Teacher != "" {
		parts = append(parts, s.Teacher)
	}
	return strings.Join(parts, " / ")
}

// sheetNameFor 工作表名不能超过 31 字符且不能包含 []:*?/\
func sheetNameFor(batch string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, batch)
	if name == "" {
		return "Sheet1"
	}
	if len([]rune(name)) > 31 {
		name = string([]rune(name)[:31])
	}
	return name
}

// ═══════════════════════════════════════════════════════════
// BatchICS
// ═══════════════════════════════════════════════════════════

const icsProductID = "-//academic-info//timetable//EN"

func (s *exportService) BatchICS(ctx context.Context, batch string) (*ExportFile, error) {
	b, err := s.timetable.GetBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	res := s.timetable.Resolver()
	now := res.Now()
	loc := res.Location()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName("Timetable " + b.Batch)
	cal.SetXWRTimezone(loc.String())

	added := 0
	for _, d := range b.Days {
		wd, ok := parseWeekday(d.Day)
		if !ok {
			continue
		}
		for i, sess := range d.Sessions {
			r, err := resolver.ParseRange(sess.Time)
			if err != nil {
				// 与当前课程定位一致：格式错误的课程跳过
				continue
			}
			date := nextWeekday(now, wd)
			start := time.Date(date.Year(), date.Month(), date.Day(), r.Start.Hour, r.Start.Minute, 0, 0, loc)
			end := time.Date(date.Year(), date.Month(), date.Day(), r.End.Hour, r.End.Minute, 0, 0, loc)

			uid := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%s/%d", b.Batch, d.Day, i))).String()
			evt := cal.AddEvent(uid)
			evt.SetDtStampTime(now)
			evt.SetStartAt(start)
			evt.SetEndAt(end)
			evt.SetSummary(sess.Subject)
			if sess.Room != "" {
				evt.SetLocation(sess.Room)
			}
			if sess.Teacher != "" {
				evt.SetDescription("Teacher: " + sess.Teacher)
			}
			evt.AddRrule("FREQ=WEEKLY")
			added++
		}
	}
	if added == 0 {
		return nil, ErrExportEmpty
	}

	buf := bytes.NewBufferString(cal.Serialize())
	return &ExportFile{Buf: buf, Filename: fmt.Sprintf("timetable_%s.ics", b.Batch), ContentType: ContentTypeICS}, nil
}

// parseWeekday "Monday" / "monday" → time.Monday
func parseWeekday(name string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(name)) {
			return d, true
		}
	}
	return time.Sunday, false
}

// nextWeekday 从 from 当天起（含当天）第一个 wd
func nextWeekday(from time.Time, wd time.Weekday) time.Time {
	diff := (int(wd) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, diff)
}

// ═══════════════════════════════════════════════════════════
// CalendarICS
// ═══════════════════════════════════════════════════════════

// 校历日期为源数据原文，以下格式可被识别，其余条目跳过
var calendarDateLayouts = []string{
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"02/01/2006",
}

// ParseCalendarDate 解析校历中的日期
func ParseCalendarDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range calendarDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s *exportService) CalendarICS(_ context.Context, semester string) (*ExportFile, error) {
	cal, err := s.calendar.Calendar()
	if err != nil {
		return nil, err
	}
	sem, ok := cal.Semester(semester)
	if !ok {
		return nil, ErrSemesterNotFound
	}

	res := s.timetable.Resolver()
	loc := res.Location()
	now := res.Now()

	out := ics.NewCalendar()
	out.SetMethod(ics.MethodPublish)
	out.SetProductId(icsProductID)
	out.SetXWRCalName(Humanize(semester + "_semester"))

	added := 0
	addDay := func(kind, name, raw string) {
		d, ok := ParseCalendarDate(raw, loc)
		if !ok {
			s.logger.Debug("跳过无法识别的校历日期", zap.String("name", name), zap.String("date", raw))
			return
		}
		uid := uuid.NewSHA1(uuid.NameSpaceURL, []byte(semester+"/"+kind+"/"+name+"/"+raw)).String()
		evt := out.AddEvent(uid)
		evt.SetDtStampTime(now)
		evt.SetAllDayStartAt(d)
		evt.SetAllDayEndAt(d.AddDate(0, 0, 1))
		evt.SetSummary(name)
		evt.SetDescription(Humanize(kind))
		added++
	}

	for _, h := range sem.Holidays {
		addDay("holiday", h.Name, h.Date)
	}
	for _, e := range sem.Events {
		addDay("event", e.Name, e.Date)
	}
	for _, br := range sem.Breaks {
		start, ok1 := ParseCalendarDate(br.StartDate, loc)
		end, ok2 := ParseCalendarDate(br.EndDate, loc)
		if !ok1 || !ok2 || end.Before(start) {
			continue
		}
		uid := uuid.NewSHA1(uuid.NameSpaceURL, []byte(semester+"/break/"+br.Name)).String()
		evt := out.AddEvent(uid)
		evt.SetDtStampTime(now)
		evt.SetAllDayStartAt(start)
		evt.SetAllDayEndAt(end.AddDate(0, 0, 1))
		evt.SetSummary(br.Name)
		added++
	}
	for _, exam := range sem.Examinations {
		var startRaw, endRaw string
		for _, d := range exam.Details {
			switch d.Label {
			case "start_date":
				startRaw = d.Value
			case "end_date":
				endRaw = d.Value
			}
		}
		start, ok := ParseCalendarDate(startRaw, loc)
		if !ok {
			continue
		}
		end, ok := ParseCalendarDate(endRaw, loc)
		if !ok || end.Before(start) {
			end = start
		}
		uid := uuid.NewSHA1(uuid.NameSpaceURL, []byte(semester+"/exam/"+exam.Type)).String()
		evt := out.AddEvent(uid)
		evt.SetDtStampTime(now)
		evt.SetAllDayStartAt(start)
		evt.SetAllDayEndAt(end.AddDate(0, 0, 1))
		evt.SetSummary(Humanize(exam.Type))
		added++
	}

	if added == 0 {
		return nil, ErrExportEmpty
	}
	buf := bytes.NewBufferString(out.Serialize())
	return &ExportFile{Buf: buf, Filename: fmt.Sprintf("calendar_%s.ics", semester), ContentType: ContentTypeICS}, nil
}
