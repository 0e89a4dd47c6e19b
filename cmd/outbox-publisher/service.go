package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type outboxRepository interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type pingable func(context.Context) error

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.pub.Publish(ctx, msg)
}

type ServiceParams struct {
	Config     config.OutboxConfig
	Logger     *logger.Logger
	Repository outboxRepository
	Publisher  publisher
	Readiness  []pingable
}

// Service drains the outbox table into the order-events topic. Rows are
// fetched oldest first, published one at a time, and marked either published
// or failed; a row that keeps failing is left for manual replay once its
// attempt count passes the configured ceiling.
type Service struct {
	logg           *logger.Logger
	repo           outboxRepository
	pub            publisher
	readiness      []pingable
	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}

	batch := params.Config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		logg:           params.Logger,
		repo:           params.Repository,
		pub:            params.Publisher,
		readiness:      params.Readiness,
		batchSize:      batch,
		maxAttempts:    maxAttempts,
		pollInterval:   time.Duration(pollMs) * time.Millisecond,
		publishTimeout: defaultPublishTimeout,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for i, ping := range s.readiness {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, "outbox dependency ping failed", err)
			return fmt.Errorf("dependency %d ping failed: %w", i, err)
		}
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if processed {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchUnpublished(s.batchSize)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}

	processed := false
	for _, event := range events {
		fields := map[string]any{
			"event_id":       event.ID.String(),
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
			"attempts":       event.Attempts,
		}
		logCtx := s.logg.WithFields(ctx, fields)

		if event.Attempts >= s.maxAttempts {
			s.logg.Warn(logCtx, "event exceeded max publish attempts, leaving for manual replay")
			continue
		}
		processed = true

		if err := s.publish(ctx, event); err != nil {
			s.logg.Error(logCtx, "publishing outbox event failed", err)
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				return processed, markErr
			}
			continue
		}

		if err := s.repo.MarkPublished(event.ID); err != nil {
			return processed, err
		}
		s.logg.Info(logCtx, "outbox event published")
	}
	return processed, nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent) error {
	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	result := s.pub.Publish(pubCtx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"eventType":     string(event.EventType),
			"aggregateType": string(event.AggregateType),
			"aggregateId":   event.AggregateID.String(),
		},
	})
	_, err := result.Get(pubCtx)
	return err
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current < base {
		current = base
	}
	next := current * 2
	if next > max {
		next = max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
