package redispub

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pipprompter/server/internal/domain"
	"github.com/pipprompter/server/internal/repository/state/inmemory"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChannel = "pipprompter:state"

func newTestPublisher(t *testing.T) (*Publisher, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	repo := inmemory.NewRepo(domain.DefaultState(), slog.Default())
	return NewPublisher(rc, testChannel, repo, slog.Default()), rc, s
}

func TestPublishStoresLatest(t *testing.T) {
	p, _, s := newTestPublisher(t)

	state := domain.DefaultState()
	state.Text = "stored"
	require.NoError(t, p.Publish(context.Background(), state))

	raw, err := s.Get(p.LatestKey())
	require.NoError(t, err)

	var got domain.PresentationState
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, state, got)
}

func TestRunPublishesSnapshots(t *testing.T) {
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer rc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := rc.Subscribe(ctx, testChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	messages := sub.Channel()

	repo := inmemory.NewRepo(domain.DefaultState(), slog.Default())
	p := NewPublisher(rc, testChannel, repo, slog.Default())
	go p.Run(ctx)

	next := func() domain.PresentationState {
		select {
		case msg := <-messages:
			var s domain.PresentationState
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &s))
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("no message published")
			return domain.PresentationState{}
		}
	}

	initial := next()
	assert.Equal(t, repo.Get(), initial)

	repo.Merge(domain.Patch{domain.FieldSpeed: 42.0})
	for {
		s := next()
		if s.Speed == 42 {
			assert.Greater(t, s.Revision, initial.Revision)
			break
		}
	}
}

func TestPublishFailure(t *testing.T) {
	p, _, s := newTestPublisher(t)
	s.Close()

	err := p.Publish(context.Background(), domain.DefaultState())
	assert.Error(t, err)
}
