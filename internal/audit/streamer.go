package audit

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// StreamerConfig configures the log-first audit streamer.
type StreamerConfig struct {
	// How many events to claim per poll.
	BatchSize int

	// PollInterval when there is no pending work.
	PollInterval time.Duration

	// MaxConcurrency bounds concurrent produce/archive of claimed events.
	MaxConcurrency int
}

// Streamer forwards appended audit events to Kafka and, optionally, to an
// object-store archive. The audit log is the source of truth: events are
// claimed from it, processed, and marked back so failures retry on the next
// poll instead of being lost.
type Streamer struct {
	source   PendingSource
	producer Producer
	archiver Archiver
	cfg      StreamerConfig
	wg       sync.WaitGroup
}

// NewStreamer constructs a streamer. The archiver may be nil; producing to
// Kafka alone is a valid pipeline. Zero cfg fields get defaults.
func NewStreamer(source PendingSource, producer Producer, archiver Archiver, cfg StreamerConfig) *Streamer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	return &Streamer{
		source:   source,
		producer: producer,
		archiver: archiver,
		cfg:      cfg,
	}
}

// Run polls for pending events and blocks until ctx is cancelled. Safe to run
// in a goroutine.
func (s *Streamer) Run(ctx context.Context) error {
	log.Printf("[audit.streamer] starting (batch=%d, concurrency=%d)", s.cfg.BatchSize, s.cfg.MaxConcurrency)
	defer log.Printf("[audit.streamer] stopped")

	sem := make(chan struct{}, s.cfg.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			if s.producer != nil {
				_ = s.producer.Close()
			}
			return ctx.Err()
		default:
		}

		events, err := s.source.FetchPendingEvents(ctx, s.cfg.BatchSize)
		if err != nil {
			log.Printf("[audit.streamer] fetch pending: %v", err)
			time.Sleep(s.cfg.PollInterval)
			continue
		}
		if len(events) == 0 {
			time.Sleep(s.cfg.PollInterval)
			continue
		}

		for _, ev := range events {
			sem <- struct{}{}
			s.wg.Add(1)
			go func(ev *Event) {
				defer func() {
					<-sem
					s.wg.Done()
				}()
				if err := s.processEvent(ctx, ev); err != nil {
					log.Printf("[audit.streamer] event %s: %v", ev.ID, err)
				}
			}(ev)
		}
		s.wg.Wait()
	}
}

func (s *Streamer) processEvent(ctx context.Context, ev *Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		_ = s.source.MarkStreamResult(ctx, ev.ID, false)
		return err
	}
	if err := s.producer.Produce(ctx, []byte(ev.ActionID), value); err != nil {
		_ = s.source.MarkStreamResult(ctx, ev.ID, false)
		return err
	}
	if s.archiver != nil {
		if err := s.archiver.ArchiveEvent(ctx, ev); err != nil {
			_ = s.source.MarkStreamResult(ctx, ev.ID, false)
			return err
		}
	}
	return s.source.MarkStreamResult(ctx, ev.ID, true)
}
