package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/slide-flatten/internal/events"
	"github.com/book-expert/slide-flatten/internal/pipeline"
)

// message is the part of jetstream.Msg a job needs.
type message interface {
	Data() []byte
	Ack() error
	Nak() error
	Term() error
	InProgress() error
}

type sourceStore interface {
	GetFile(ctx context.Context, name, file string, opts ...jetstream.GetObjectOpt) error
}

type artifactStore interface {
	Put(ctx context.Context, meta jetstream.ObjectMeta, reader io.Reader) (*jetstream.ObjectInfo, error)
}

type publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type converter interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// worker holds what every job shares.
type worker struct {
	sources   sourceStore
	artifacts artifactStore
	publisher publisher
	converter converter
	cfg       *Config
	log       *logger.Logger
	// heartbeat is the InProgress interval during a conversion. Zero selects
	// progressInterval.
	heartbeat time.Duration
}

// job represents the context for processing a single message.
type job struct {
	*worker

	msg        message
	event      *events.ConversionRequestedEvent
	kind       pipeline.Kind
	workDir    string
	localInput string
}

// handle processes one message. Undecodable requests and missing sources are
// terminated; every other failure is NAK'ed for redelivery.
func (w *worker) handle(ctx context.Context, msg message) {
	event, decodeErr := events.DecodeConversionRequested(msg.Data())
	if decodeErr != nil {
		w.log.Error("Terminating undecodable message: %v", decodeErr)

		if err := msg.Term(); err != nil {
			w.log.Error("Failed to TERM message: %v", err)
		}

		return
	}

	kind, _ := event.Kind()

	j := &job{worker: w, msg: msg, event: event, kind: kind}
	j.run(ctx)
}

// run executes the full lifecycle of a job.
func (j *job) run(ctx context.Context) {
	workflowID := j.event.Header.WorkflowID
	j.log.Info("Received job for WorkflowID [%s]: converting '%s' to %s", workflowID, j.event.SourceKey, j.kind)

	j.progress()

	if dirErr := j.setupWorkDir(); dirErr != nil {
		j.nak(dirErr)

		return
	}
	defer j.cleanupWorkDir()

	if downloadErr := j.downloadSource(ctx); downloadErr != nil {
		if errors.Is(downloadErr, jetstream.ErrObjectNotFound) {
			j.term(downloadErr)
		} else {
			j.nak(downloadErr)
		}

		return
	}

	stopProgress := j.keepAlive(ctx)

	result, convertErr := j.converter.Run(ctx, pipeline.Request{
		Source: j.localInput,
		Kind:   j.kind,
		DPI:    j.requestedDPI(),
	})

	stopProgress()

	if convertErr != nil {
		j.nak(fmt.Errorf("conversion failed: %w", convertErr))

		return
	}

	j.progress()

	if publishErr := j.publishArtifact(ctx, result); publishErr != nil {
		j.nak(publishErr)

		return
	}

	j.ack()
}

func (j *job) progress() {
	if err := j.msg.InProgress(); err != nil {
		j.log.Warn("Failed to send InProgress update: %v", err)
	}
}

// keepAlive sends InProgress on every heartbeat until the returned stop
// function is called. stop waits for the last update to finish.
func (j *job) keepAlive(ctx context.Context) (stop func()) {
	interval := j.heartbeat
	if interval <= 0 {
		interval = progressInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.progress()
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (j *job) requestedDPI() int {
	if j.event.DPI > 0 {
		return j.event.DPI
	}

	return j.cfg.Conversion.DPI
}

func (j *job) setupWorkDir() error {
	workDir, err := os.MkdirTemp("", fmt.Sprintf("slides-%s-", safeName(j.event.Header.WorkflowID)))
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}

	j.workDir = workDir
	j.localInput = filepath.Join(workDir, safeName(path.Base(j.event.SourceKey)))

	return nil
}

func (j *job) cleanupWorkDir() {
	if err := os.RemoveAll(j.workDir); err != nil {
		j.log.Warn("Failed to remove temp directory '%s': %v", j.workDir, err)
	}
}

func (j *job) downloadSource(ctx context.Context) error {
	if err := j.sources.GetFile(ctx, j.event.SourceKey, j.localInput); err != nil {
		return fmt.Errorf("failed to get '%s' from object store: %w", j.event.SourceKey, err)
	}

	return nil
}

// publishArtifact uploads the converted file and announces it.
func (j *job) publishArtifact(ctx context.Context, result *pipeline.Result) error {
	header := j.event.Header
	artifactKey := artifactObjectName(header.TenantID, header.WorkflowID, result.Layout.Output)

	if uploadErr := uploadFileToObjectStore(ctx, j.artifacts, artifactKey, result.Layout.Output); uploadErr != nil {
		return fmt.Errorf("failed to upload '%s': %w", artifactKey, uploadErr)
	}

	j.log.Info("Job [%s]: Uploaded '%s'", header.WorkflowID, artifactKey)

	created := events.NewArtifactCreated(j.event, artifactKey, j.kind, result.Slides, result.DPI, result.Page)

	eventJSON, marshalErr := json.Marshal(created)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal ArtifactCreatedEvent: %w", marshalErr)
	}

	if _, pubErr := j.publisher.Publish(ctx, j.cfg.NATS.ArtifactCreatedSubject, eventJSON); pubErr != nil {
		return fmt.Errorf("failed to publish ArtifactCreatedEvent: %w", pubErr)
	}

	return nil
}

func (j *job) ack() {
	if err := j.msg.Ack(); err != nil {
		j.log.Error("Job [%s]: Failed to acknowledge message: %v", j.event.Header.WorkflowID, err)
	} else {
		j.log.Success("Job [%s]: Processing complete. Acknowledged.", j.event.Header.WorkflowID)
	}
}

func (j *job) nak(reason error) {
	j.log.Error("NAK'ing message for job [%s]: %v", j.event.Header.WorkflowID, reason)

	if err := j.msg.Nak(); err != nil {
		j.log.Error("Failed to NAK message: %v", err)
	}
}

func (j *job) term(reason error) {
	j.log.Error("Terminating message for job [%s]: %v", j.event.Header.WorkflowID, reason)

	if err := j.msg.Term(); err != nil {
		j.log.Error("Failed to TERM message: %v", err)
	}
}

// artifactObjectName places the artifact under <tenant>/<workflow>/. An empty
// tenant is omitted.
func artifactObjectName(tenantID, workflowID, localPath string) string {
	parts := make([]string, 0, 3)
	if tenantID != "" {
		parts = append(parts, tenantID)
	}

	return strings.Join(append(parts, workflowID, filepath.Base(localPath)), "/")
}

// safeName keeps an object key component usable as a single file name.
func safeName(name string) string {
	replacer := strings.NewReplacer("/", "_", `\`, "_", ":", "_", "..", "_")

	cleaned := replacer.Replace(name)
	if cleaned == "" || cleaned == "." {
		return "source"
	}

	return cleaned
}

func uploadFileToObjectStore(ctx context.Context, store artifactStore, objectName, filePath string) error {
	file, openErr := os.Open(filePath)
	if openErr != nil {
		return fmt.Errorf("failed to open file for upload: %w", openErr)
	}
	defer file.Close()

	meta := jetstream.ObjectMeta{Name: objectName}

	if _, putErr := store.Put(ctx, meta, file); putErr != nil {
		return fmt.Errorf("failed to put file in object store: %w", putErr)
	}

	return nil
}
