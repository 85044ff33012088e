package model

import "strings"

// MediaRef points at a voice recording or image. Exactly one of Path, URL or
// Data is expected to be set.
type MediaRef struct {
	Path     string `json:"path,omitempty"`
	URL      string `json:"url,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     []byte `json:"-"`
}

func (r *MediaRef) Empty() bool {
	return r == nil || (strings.TrimSpace(r.Path) == "" && strings.TrimSpace(r.URL) == "" && len(r.Data) == 0)
}

// InputBundle is one forensic case unit. A nil segment means the modality is
// absent from the case.
type InputBundle struct {
	CaseID string    `json:"case_id"`
	Text   *string   `json:"text,omitempty"`
	Voice  *MediaRef `json:"voice,omitempty"`
	Image  *MediaRef `json:"image,omitempty"`
}

// Segment is the part of a bundle handled by one processor.
type Segment struct {
	CaseID string
	Text   *string
	Media  *MediaRef
}

// Absent reports whether the bundle carries nothing for this modality.
func (s Segment) Absent() bool {
	return s.Text == nil && s.Media == nil
}

func (b *InputBundle) Segment(m Modality) Segment {
	seg := Segment{CaseID: b.CaseID}
	switch m {
	case ModalityText:
		seg.Text = b.Text
	case ModalityVoice:
		seg.Media = b.Voice
	case ModalityImage:
		seg.Media = b.Image
	}
	return seg
}

type BatchStatus string

const (
	StatusOK      BatchStatus = "OK"
	StatusPartial BatchStatus = "PARTIAL"
	StatusFailed  BatchStatus = "FAILED"
)

type EntityBatch struct {
	Modality Modality          `json:"modality"`
	Status   BatchStatus       `json:"status"`
	Entities []CandidateEntity `json:"entities"`
	Attempts int               `json:"attempts"`
	Err      error             `json:"-"`
}

func (b EntityBatch) Failed() bool {
	return b.Status == StatusFailed
}

// ErrorMessage returns the recorded error text, or "" when the batch has none.
func (b EntityBatch) ErrorMessage() string {
	if b.Err == nil {
		return ""
	}
	return b.Err.Error()
}

func OKBatch(m Modality, entities []CandidateEntity) EntityBatch {
	if entities == nil {
		entities = []CandidateEntity{}
	}
	return EntityBatch{Modality: m, Status: StatusOK, Entities: entities}
}

func FailedBatch(m Modality, err error) EntityBatch {
	return EntityBatch{Modality: m, Status: StatusFailed, Entities: []CandidateEntity{}, Err: err}
}
