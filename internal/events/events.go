// Package events defines the messages exchanged by the conversion worker.
// Both events carry the shared workflow header so downstream services can
// correlate artifacts with the request that produced them.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bookevents "github.com/book-expert/events"
	"github.com/google/uuid"

	"github.com/book-expert/slide-flatten/internal/host"
	"github.com/book-expert/slide-flatten/internal/pipeline"
)

var (
	// ErrMissingWorkflowID is returned for a request without a workflow id.
	ErrMissingWorkflowID = errors.New("event header has no workflow id")
	// ErrMissingSourceKey is returned for a request without a source object key.
	ErrMissingSourceKey = errors.New("conversion request has no source key")
)

// ConversionRequestedEvent asks the worker to convert one presentation stored
// in the source object store.
type ConversionRequestedEvent struct {
	Header    bookevents.EventHeader `json:"header"`
	SourceKey string                 `json:"source_key"`
	// Format is "pdf" or "pptx".
	Format string `json:"format"`
	// DPI is optional; non-positive values select the default.
	DPI int `json:"dpi,omitempty"`
}

// ArtifactCreatedEvent announces a converted artifact in the artifact object store.
type ArtifactCreatedEvent struct {
	Header      bookevents.EventHeader `json:"header"`
	SourceKey   string                 `json:"source_key"`
	ArtifactKey string                 `json:"artifact_key"`
	Format      string                 `json:"format"`
	SlideCount  int                    `json:"slide_count"`
	DPI         int                    `json:"dpi"`
	PageWidth   float64                `json:"page_width"`
	PageHeight  float64                `json:"page_height"`
}

// DecodeConversionRequested unmarshals and validates a request.
func DecodeConversionRequested(data []byte) (*ConversionRequestedEvent, error) {
	var event ConversionRequestedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ConversionRequestedEvent: %w", err)
	}

	if event.Header.WorkflowID == "" {
		return nil, ErrMissingWorkflowID
	}

	if event.SourceKey == "" {
		return nil, ErrMissingSourceKey
	}

	if _, err := event.Kind(); err != nil {
		return nil, err
	}

	return &event, nil
}

// Kind maps the requested format to a pipeline kind.
func (e *ConversionRequestedEvent) Kind() (pipeline.Kind, error) {
	kind, err := pipeline.ParseKind(e.Format)
	if err != nil {
		return 0, fmt.Errorf("conversion request format: %w", err)
	}

	return kind, nil
}

// NewArtifactCreated builds the announcement for an artifact produced for req.
// The workflow, user and tenant are carried over; the event gets a fresh id.
func NewArtifactCreated(
	req *ConversionRequestedEvent,
	artifactKey string,
	kind pipeline.Kind,
	slides, dpi int,
	page host.PageSize,
) ArtifactCreatedEvent {
	return ArtifactCreatedEvent{
		Header: bookevents.EventHeader{
			WorkflowID: req.Header.WorkflowID,
			UserID:     req.Header.UserID,
			TenantID:   req.Header.TenantID,
			EventID:    uuid.New().String(),
			Timestamp:  time.Now(),
		},
		SourceKey:   req.SourceKey,
		ArtifactKey: artifactKey,
		Format:      kind.String(),
		SlideCount:  slides,
		DPI:         dpi,
		PageWidth:   page.Width,
		PageHeight:  page.Height,
	}
}
