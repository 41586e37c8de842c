package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	natsFetchTimeout = 5 * time.Second
	ackWait          = 2 * time.Minute
	// progressInterval keeps a running conversion well inside ackWait.
	progressInterval = ackWait / 4
)

// setupJetStream ensures all required NATS streams and object stores exist.
func setupJetStream(ctx context.Context, jetStream jetstream.JetStream, cfg *Config) error {
	requestStreamCfg := newStreamConfig(cfg.NATS.RequestStreamName, cfg.NATS.RequestSubject)

	_, streamErr := jetStream.CreateStream(ctx, *requestStreamCfg)
	if streamErr != nil && !errors.Is(streamErr, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create request stream: %w", streamErr)
	}

	stream, streamErr := jetStream.Stream(ctx, cfg.NATS.RequestStreamName)
	if streamErr != nil {
		return fmt.Errorf("failed to get request stream handle: %w", streamErr)
	}

	if _, consumerErr := stream.CreateOrUpdateConsumer(ctx, *newConsumerConfig(cfg)); consumerErr != nil {
		return fmt.Errorf("failed to create request consumer: %w", consumerErr)
	}

	artifactStreamCfg := newStreamConfig(cfg.NATS.ArtifactStreamName, cfg.NATS.ArtifactCreatedSubject)

	_, artifactStreamErr := jetStream.CreateStream(ctx, *artifactStreamCfg)
	if artifactStreamErr != nil && !errors.Is(artifactStreamErr, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create artifact stream: %w", artifactStreamErr)
	}

	for _, bucket := range []string{cfg.NATS.SourceObjectStore, cfg.NATS.ArtifactObjectStore} {
		_, objStoreErr := jetStream.CreateObjectStore(ctx, *newObjectStoreConfig(bucket))
		if objStoreErr != nil && !errors.Is(objStoreErr, jetstream.ErrBucketExists) {
			return fmt.Errorf("failed to create object store '%s': %w", bucket, objStoreErr)
		}
	}

	return nil
}

func newStreamConfig(name, subject string) *jetstream.StreamConfig {
	return &jetstream.StreamConfig{
		Name:              name,
		Subjects:          []string{subject},
		Retention:         jetstream.WorkQueuePolicy,
		MaxConsumers:      -1,
		MaxMsgs:           -1,
		MaxBytes:          -1,
		Discard:           jetstream.DiscardOld,
		MaxMsgsPerSubject: -1,
		MaxMsgSize:        -1,
		Storage:           jetstream.FileStorage,
		Replicas:          1,
		Compression:       jetstream.NoCompression,
	}
}

// newConsumerConfig allows a single outstanding message: the presentation host
// must never be driven by two jobs at once.
func newConsumerConfig(cfg *Config) *jetstream.ConsumerConfig {
	return &jetstream.ConsumerConfig{
		Durable:       cfg.NATS.RequestConsumerName,
		FilterSubject: cfg.NATS.RequestSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    -1,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
		MaxAckPending: 1,
	}
}

func newObjectStoreConfig(bucket string) *jetstream.ObjectStoreConfig {
	return &jetstream.ObjectStoreConfig{
		Bucket:   bucket,
		MaxBytes: -1,
		Storage:  jetstream.FileStorage,
		Replicas: 1,
	}
}

// processMessages implements the core worker loop, one message per fetch.
func processMessages(ctx context.Context, consumer jetstream.Consumer, w *worker) error {
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("context error in message loop: %w", ctxErr)
		}

		batch, fetchErr := consumer.Fetch(1, jetstream.FetchMaxWait(natsFetchTimeout))
		if fetchErr != nil {
			if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, nats.ErrTimeout) {
				continue
			}

			w.log.Error("Error fetching messages: %v", fetchErr)

			continue
		}

		for msg := range batch.Messages() {
			w.handle(ctx, msg)
		}

		if batchErr := batch.Error(); batchErr != nil && !errors.Is(batchErr, nats.ErrTimeout) {
			w.log.Error("Error during message batch processing: %v", batchErr)
		}
	}
}
