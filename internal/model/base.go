package model

import (
	"time"
)

// AuditModel 通用审计字段
type AuditModel struct {
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy *string   `gorm:"type:varchar(100)"                   json:"updated_by,omitempty"`
}
