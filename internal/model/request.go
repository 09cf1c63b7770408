package model

import "time"

// RequestKind identifies the workflow a request belongs to
type RequestKind string

const (
	KindEnhancement RequestKind = "enhancement"
	KindShorts      RequestKind = "shorts"
)

// RequestStatus is the lifecycle state of a processing request
type RequestStatus string

const (
	StatusIdle       RequestStatus = "idle"
	StatusSubmitting RequestStatus = "submitting"
	StatusSucceeded  RequestStatus = "succeeded"
	StatusFailed     RequestStatus = "failed"
)

// ProcessingRequest tracks one submission of a given kind.
type ProcessingRequest struct {
	Kind        RequestKind   `json:"kind"`
	Seq         uint64        `json:"seq"`
	Status      RequestStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	SubmittedAt *time.Time    `json:"submittedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// InFlight reports whether the request is waiting on the backend
func (r ProcessingRequest) InFlight() bool {
	return r.Status == StatusSubmitting
}

// ShortClip is one generated short video and the script that accompanies it.
type ShortClip struct {
	VideoURL string `json:"videoUrl"`
	Script   string `json:"script"`
}
