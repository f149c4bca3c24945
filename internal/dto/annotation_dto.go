package dto

import "time"

// SessionIdentity is what the session middleware resolves from a token.
type SessionIdentity struct {
	SessionId string
	Email     string
}

type TripleResponse struct {
	Subject    string `json:"subject"`
	Predicate  string `json:"predicate"`
	Object     string `json:"object"`
	ObjectKind string `json:"object_kind"` // iri | literal | blank
}

type CandidateResponse struct {
	Resource            string           `json:"resource"`
	ResourceLabel       string           `json:"resource_label"`
	Strategy            string           `json:"strategy"`
	Position            int              `json:"position"`
	Buffered            int              `json:"buffered"`
	NumberOfAnnotations int              `json:"numberOfAnnotations"`
	Triples             []TripleResponse `json:"triples"`
}

// AnnotationEntry refers to a buffered candidate by its order (index).
type AnnotationEntry struct {
	Order int    `json:"order"`
	Type  string `json:"type"`
}

// SubmitAnnotationsRequest mirrors the annotator form: only the first
// NumberOfAnnotations entries are considered, null entries are skipped.
type SubmitAnnotationsRequest struct {
	NumberOfAnnotations int                `json:"numberOfAnnotations" validate:"gte=0"`
	Annotations         []*AnnotationEntry `json:"annotations"`
}

type SubmitAnnotationsResponse struct {
	Written  int                `json:"written"`
	Subjects []string           `json:"subjects"`
	Current  *CandidateResponse `json:"current,omitempty"`
}

type SessionSnapshotResponse struct {
	SessionId string `json:"session_id"`
	Position  int    `json:"position"`
	Buffered  int    `json:"buffered"`
	Ledger    int    `json:"presented_offsets"`
}

// AnnotationsSubmittedMessage is the in-process event payload published
// after a successful write.
type AnnotationsSubmittedMessage struct {
	SubmissionId string   `json:"submission_id"`
	Email        string   `json:"email"`
	SessionId    string   `json:"session_id"`
	Subjects     []string `json:"subjects"`
	Concepts     []string `json:"concepts"`
}

type SubmittedAnnotationResponse struct {
	Subject string `json:"subject"`
	Concept string `json:"concept"`
}

type SubmissionResponse struct {
	Id          string                        `json:"id"`
	SessionId   string                        `json:"session_id"`
	Annotations []SubmittedAnnotationResponse `json:"annotations"`
	CreatedAt   time.Time                     `json:"created_at"`
}

type SubmissionHistoryResponse struct {
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Size  int                  `json:"size"`
	Items []SubmissionResponse `json:"items"`
}

type AnnotationCountResponse struct {
	Email               string `json:"email"`
	NumberOfAnnotations int    `json:"numberOfAnnotations"`
}
