package entity

import (
	"time"

	"github.com/google/uuid"
)

// SubmittedAnnotation is one resource/concept pair written to the triple store.
type SubmittedAnnotation struct {
	Subject string `json:"subject"`
	Concept string `json:"concept"`
}

// AnnotationSubmission is the local audit record of one successful write.
type AnnotationSubmission struct {
	Id          uuid.UUID
	UserEmail   string
	SessionId   string
	Annotations []SubmittedAnnotation
	CreatedAt   time.Time
}
