package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAllModalitiesFailed is matched by errors.Is against a PipelineError of
// kind ALL_MODALITIES_FAILED.
var ErrAllModalitiesFailed = errors.New("all modalities failed")

type ProcessorErrorKind string

const (
	ProcessorTimeout         ProcessorErrorKind = "TIMEOUT"
	ProcessorMalformedInput  ProcessorErrorKind = "MALFORMED_INPUT"
	ProcessorMalformedOutput ProcessorErrorKind = "MALFORMED_OUTPUT"
)

type ProcessorError struct {
	Kind     ProcessorErrorKind
	Modality Modality
	Err      error
}

func (e *ProcessorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s processor: %s", e.Modality.Lower(), e.Kind)
	}
	return fmt.Sprintf("%s processor: %s: %v", e.Modality.Lower(), e.Kind, e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

type PipelineErrorKind string

const PipelineAllModalitiesFailed PipelineErrorKind = "ALL_MODALITIES_FAILED"

type PipelineError struct {
	Kind   PipelineErrorKind
	CaseID string
	Causes map[Modality]error
}

func (e *PipelineError) Error() string {
	var parts []string
	for _, m := range Modalities {
		if err, ok := e.Causes[m]; ok && err != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", m.Lower(), err))
		}
	}
	msg := fmt.Sprintf("case %s: %s", e.CaseID, e.Kind)
	if len(parts) > 0 {
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return msg
}

func (e *PipelineError) Is(target error) bool {
	return target == ErrAllModalitiesFailed && e.Kind == PipelineAllModalitiesFailed
}

// SkippedEntity is a non-fatal fusion warning for a malformed candidate.
type SkippedEntity struct {
	EntityID string   `json:"entity_id"`
	Modality Modality `json:"modality"`
	Reason   string   `json:"reason"`
}
