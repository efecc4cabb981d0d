// Package redispub mirrors presentation snapshots into Redis so that players
// running in other processes can follow the state.
package redispub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pipprompter/server/internal/domain"
	"github.com/redis/go-redis/v9"
)

type iStateFeed interface {
	Get() domain.PresentationState
	Subscribe(buffer int) (string, <-chan domain.PresentationState, error)
	Unsubscribe(id string) error
}

type Publisher struct {
	rc      *redis.Client
	channel string
	feed    iStateFeed
	logger  *slog.Logger
}

func NewPublisher(rc *redis.Client, channel string, feed iStateFeed, logger *slog.Logger) *Publisher {
	return &Publisher{
		rc:      rc,
		channel: channel,
		feed:    feed,
		logger:  logger,
	}
}

// LatestKey holds the most recent snapshot for late subscribers.
func (p *Publisher) LatestKey() string {
	return p.channel + ":latest"
}

// Publish stores the snapshot under LatestKey and announces it on the
// channel in one transaction.
func (p *Publisher) Publish(ctx context.Context, s domain.PresentationState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	pipe := p.rc.TxPipeline()
	pipe.Set(ctx, p.LatestKey(), data, 0)
	pipe.Publish(ctx, p.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish state: %w", err)
	}

	return nil
}

// Run publishes the current snapshot and every newer one until ctx is done.
// Publish failures are logged and do not stop the loop.
func (p *Publisher) Run(ctx context.Context) error {
	id, snapshots, err := p.feed.Subscribe(1)
	if err != nil {
		return fmt.Errorf("failed to subscribe to state: %w", err)
	}
	defer p.feed.Unsubscribe(id)

	last := p.feed.Get()
	p.publish(ctx, last)

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-snapshots:
			if !ok {
				return nil
			}
			if s.Revision <= last.Revision {
				continue
			}
			p.publish(ctx, s)
			last = s
		}
	}
}

func (p *Publisher) publish(ctx context.Context, s domain.PresentationState) {
	if err := p.Publish(ctx, s); err != nil {
		p.logger.WarnContext(ctx, "redis publish failed", "revision", s.Revision, "error", err)
		return
	}

	p.logger.DebugContext(ctx, "state published", "channel", p.channel, "revision", s.Revision)
}
