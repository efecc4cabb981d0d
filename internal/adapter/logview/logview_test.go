package logview

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pipprompter/server/internal/domain"
	"github.com/pipprompter/server/internal/repository/state/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRender(t *testing.T) {
	s := domain.DefaultState()
	s.TextColorHex = "F00"
	s.TextBackgroundHex = "80000000"

	var buf bytes.Buffer
	slog.New(slog.NewJSONHandler(&buf, nil)).Info("render", Render(s)...)

	out := buf.String()
	assert.Contains(t, out, `"scale_asset":"h3x1"`)
	assert.Contains(t, out, `"text_color":{"hex":"FF0000","r":1,"g":0,"b":0,"a":1}`)
	assert.Contains(t, out, `"background_color":{"hex":"80000000","r":0,"g":0,"b":0,"a":0.5019607843137255}`)
}

func TestRunLogsChangedFields(t *testing.T) {
	repo := inmemory.NewRepo(domain.DefaultState(), slog.Default())
	buf := &syncBuffer{}
	a := New(repo, slog.New(slog.NewJSONHandler(buf, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "presentation initialized")
	}, time.Second, 5*time.Millisecond)
	assert.True(t, repo.Get().IsPipMode)

	repo.Merge(domain.Patch{domain.FieldText: "next line", domain.FieldScale: domain.Scale4x3})

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "presentation updated")
	}, time.Second, 5*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, `"changed":["text","scale"]`)
	assert.Contains(t, out, `"scale_asset":"h4x3"`)

	cancel()
	assert.Eventually(t, func() bool {
		return !repo.Get().IsPipMode
	}, time.Second, 5*time.Millisecond)
}
