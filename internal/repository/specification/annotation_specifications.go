package specification

import "gorm.io/gorm"

// SubmittedBy filters submissions by annotator email.
type SubmittedBy struct {
	Email string
}

func (s SubmittedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_email = ?", s.Email)
}

type BySession struct {
	SessionId string
}

func (s BySession) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionId)
}
