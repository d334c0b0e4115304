package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
)

// AuditEntry is an immutable record of one state-changing operation.
// Details carries a JSON document serialized at write time.
type AuditEntry struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Timestamp  time.Time         `gorm:"column:timestamp;not null;index"`
	UserID     *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	Username   *string           `gorm:"column:username"`
	Action     string            `gorm:"column:action;not null;index"`
	TargetType *string           `gorm:"column:target_type;index"`
	TargetID   *string           `gorm:"column:target_id"`
	Details    string            `gorm:"column:details;not null;default:'{}'"`
	Status     enums.AuditStatus `gorm:"column:status;not null;index"`
	IPAddress  *string           `gorm:"column:ip_address"`
}
