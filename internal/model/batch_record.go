package model

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// BatchRecord 班级课表，对应 batches 表
// days 存为 [{day, sessions}] 数组：JSONB 不保留对象键顺序
type BatchRecord struct {
	BatchID  string         `gorm:"type:varchar(50);primaryKey" json:"batch_id"`
	Position int            `gorm:"not null;default:0"          json:"position"`
	Days     datatypes.JSON `gorm:"type:jsonb;not null"         json:"days"`
	AuditModel
}

// TableName 指定表名
func (BatchRecord) TableName() string { return "batches" }

// ToBatch 转为领域结构
func (r *BatchRecord) ToBatch() (BatchTimetable, error) {
	var days []DaySchedule
	if len(r.Days) > 0 {
		if err := json.Unmarshal(r.Days, &days); err != nil {
			return BatchTimetable{}, fmt.Errorf("batch %s 的 days 字段无效: %w", r.BatchID, err)
		}
	}
	for i := range days {
		if days[i].Sessions == nil {
			days[i].Sessions = []Session{}
		}
	}
	return BatchTimetable{Batch: r.BatchID, Days: days}, nil
}

// NewBatchRecord 由领域结构构造数据库行
func NewBatchRecord(b BatchTimetable, position int, updatedBy string) (BatchRecord, error) {
	days := b.Days
	if days == nil {
		days = []DaySchedule{}
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return BatchRecord{}, err
	}
	rec := BatchRecord{
		BatchID:  b.Batch,
		Position: position,
		Days:     datatypes.JSON(raw),
	}
	if updatedBy != "" {
		rec.UpdatedBy = &updatedBy
	}
	return rec, nil
}
