package events_test

import (
	"encoding/json"
	"testing"

	bookevents "github.com/book-expert/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/slide-flatten/internal/events"
	"github.com/book-expert/slide-flatten/internal/host"
	"github.com/book-expert/slide-flatten/internal/pipeline"
)

func encode(t *testing.T, workflowID, sourceKey, format string) []byte {
	t.Helper()

	data, err := json.Marshal(events.ConversionRequestedEvent{
		Header:    bookevents.EventHeader{WorkflowID: workflowID, TenantID: "tenant-1"},
		SourceKey: sourceKey,
		Format:    format,
		DPI:       150,
	})
	require.NoError(t, err)

	return data
}

func TestDecodeConversionRequested(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		workflow  string
		sourceKey string
		format    string
		wantErr   error
		want      pipeline.Kind
	}{
		{name: "Valid pdf request", workflow: "wf-1", sourceKey: "decks/q3.pptx", format: "pdf", want: pipeline.KindDocument},
		{name: "Valid pptx request", workflow: "wf-2", sourceKey: "q3.pptx", format: "PPTX", want: pipeline.KindPresentation},
		{name: "Missing workflow", sourceKey: "q3.pptx", format: "pdf", wantErr: events.ErrMissingWorkflowID},
		{name: "Missing source key", workflow: "wf-3", format: "pdf", wantErr: events.ErrMissingSourceKey},
		{name: "Unknown format", workflow: "wf-4", sourceKey: "q3.pptx", format: "docx", wantErr: pipeline.ErrUnknownKind},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			event, err := events.DecodeConversionRequested(
				encode(t, testCase.workflow, testCase.sourceKey, testCase.format),
			)
			if testCase.wantErr != nil {
				require.ErrorIs(t, err, testCase.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.workflow, event.Header.WorkflowID)
			assert.Equal(t, "tenant-1", event.Header.TenantID)
			assert.Equal(t, 150, event.DPI)

			kind, kindErr := event.Kind()
			require.NoError(t, kindErr)
			assert.Equal(t, testCase.want, kind)
		})
	}

	_, err := events.DecodeConversionRequested([]byte("{not json"))
	require.Error(t, err)
}

func TestNewArtifactCreated(t *testing.T) {
	t.Parallel()

	req := &events.ConversionRequestedEvent{
		Header: bookevents.EventHeader{
			WorkflowID: "wf-9",
			UserID:     "user-1",
			TenantID:   "tenant-1",
			EventID:    "request-event",
		},
		SourceKey: "decks/q3.pptx",
		Format:    "pptx",
	}

	event := events.NewArtifactCreated(
		req, "tenant-1/wf-9/q3_图片版.pptx", pipeline.KindPresentation, 12, 300,
		host.PageSize{Width: 960, Height: 540},
	)

	assert.Equal(t, "wf-9", event.Header.WorkflowID)
	assert.Equal(t, "user-1", event.Header.UserID)
	assert.Equal(t, "tenant-1", event.Header.TenantID)
	assert.NotEqual(t, "request-event", event.Header.EventID)
	assert.NotEmpty(t, event.Header.EventID)
	assert.False(t, event.Header.Timestamp.IsZero())
	assert.Equal(t, "pptx", event.Format)
	assert.Equal(t, 12, event.SlideCount)
	assert.InDelta(t, 960.0, event.PageWidth, 0.001)

	encoded, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"artifact_key":"tenant-1/wf-9/q3_图片版.pptx"`)
}
