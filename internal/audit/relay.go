package audit

import (
	"context"
	"log/slog"
	"time"
)

// Sink receives relayed audit payloads. Satisfied by the platform Kafka
// producer; tests use an in-process fake.
type Sink interface {
	Produce(ctx context.Context, key, value []byte) error
}

// Relay drains the outbox into the sink. Entries are marked published only
// after the sink accepts them, so a crash re-delivers rather than drops;
// consumers must tolerate duplicates.
type Relay struct {
	outbox   *OutboxStore
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewRelay(outbox *OutboxStore, sink Sink, logger *slog.Logger) *Relay {
	return &Relay{
		outbox:   outbox,
		sink:     sink,
		logger:   logger,
		interval: 2 * time.Second,
		batch:    100,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil && r.logger != nil {
				r.logger.ErrorContext(ctx, "audit relay drain failed", "error", err)
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	entries, err := r.outbox.Unpublished(ctx, r.batch)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := r.sink.Produce(ctx, []byte(entry.Action), entry.Payload); err != nil {
			return err
		}
		if err := r.outbox.MarkPublished(ctx, entry.ID); err != nil {
			return err
		}
	}
	return nil
}
