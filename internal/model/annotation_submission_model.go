package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AnnotationSubmission struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserEmail   string         `gorm:"type:varchar(255);not null;index"`
	SessionId   string         `gorm:"type:varchar(64);not null;index"`
	Annotations datatypes.JSON `gorm:"type:jsonb;not null"`
	Count       int            `gorm:"not null;default:0"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index"`
}

func (AnnotationSubmission) TableName() string {
	return "annotation_submissions"
}
