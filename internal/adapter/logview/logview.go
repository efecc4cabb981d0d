// Package logview is a headless presentation adapter: it renders every
// committed snapshot into the log as the set of fields that changed. While
// it runs, the presentation counts as being in picture-in-picture mode.
package logview

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pipprompter/server/internal/domain"
	"github.com/pipprompter/server/pkg/colorhex"
)

type iStateFeed interface {
	Get() domain.PresentationState
	Subscribe(buffer int) (string, <-chan domain.PresentationState, error)
	Unsubscribe(id string) error
	SetPipMode(bool) domain.PresentationState
}

type Adapter struct {
	feed   iStateFeed
	logger *slog.Logger
}

func New(feed iStateFeed, logger *slog.Logger) *Adapter {
	return &Adapter{
		feed:   feed,
		logger: logger,
	}
}

// Run logs snapshots until ctx is done.
func (a *Adapter) Run(ctx context.Context) error {
	id, snapshots, err := a.feed.Subscribe(1)
	if err != nil {
		return fmt.Errorf("failed to subscribe to state: %w", err)
	}
	defer a.feed.Unsubscribe(id)

	prev := a.feed.SetPipMode(true)
	defer a.feed.SetPipMode(false)
	a.logger.InfoContext(ctx, "presentation initialized", Render(prev)...)

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-snapshots:
			if !ok {
				return nil
			}
			if s.Revision <= prev.Revision {
				continue
			}

			changed := domain.Diff(prev, s)
			args := append([]any{"revision", s.Revision, "changed", changed}, Render(s)...)
			a.logger.InfoContext(ctx, "presentation updated", args...)
			prev = s
		}
	}
}

// Render resolves the state into what a player would show: the scale asset
// and colors as RGBA components with their canonical hex form.
func Render(s domain.PresentationState) []any {
	args := []any{
		"scale_asset", s.Scale.AssetName(),
		"font_size", s.FontSize,
		"scroll_progress", s.ScrollProgress,
		"auto_scroll", s.AutoScroll,
		"pip", s.IsPipMode,
	}

	for _, c := range []struct {
		key string
		hex string
	}{
		{"text_color", s.TextColorHex},
		{"background_color", s.TextBackgroundHex},
	} {
		rgba, err := colorhex.Parse(c.hex)
		if err != nil {
			args = append(args, c.key+"_error", err.Error())
			continue
		}
		args = append(args, slog.Group(c.key,
			"hex", colorhex.Format(rgba),
			"r", rgba.R,
			"g", rgba.G,
			"b", rgba.B,
			"a", rgba.A,
		))
	}

	return args
}
