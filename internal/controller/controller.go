package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pipprompter/server/internal/domain"
	"github.com/pipprompter/server/internal/service/presentation"
	"github.com/pipprompter/server/pkg/wsrouter"
)

type iPresentationService interface {
	GetState(context.Context) domain.PresentationState
	Update(context.Context, *presentation.UpdateParams) (presentation.UpdateResponse, error)
}

type iStateFeed interface {
	Subscribe(buffer int) (string, <-chan domain.PresentationState, error)
	Unsubscribe(id string) error
}

type iPage interface {
	Content() ([]byte, bool)
}

type iAccessService interface {
	Enabled() bool
	Verify(token string) error
}

type iConnRepo interface {
	Add(id string, conn *wsrouter.Conn) error
	Remove(id string) error
	CloseAll() int
	Len() int
}

type controller struct {
	presentationService iPresentationService
	stateFeed           iStateFeed
	page                iPage
	accessService       iAccessService
	connRepo            iConnRepo
	upgrader            websocket.Upgrader
	wsRouter            *wsrouter.WSRouter
	logger              *slog.Logger
}

func NewController(
	presentationService iPresentationService,
	stateFeed iStateFeed,
	page iPage,
	accessService iAccessService,
	connRepo iConnRepo,
	logger *slog.Logger,
) *controller {
	c := &controller{
		presentationService: presentationService,
		stateFeed:           stateFeed,
		page:                page,
		accessService:       accessService,
		connRepo:            connRepo,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
	c.wsRouter = c.getWSRouter()

	return c
}

// CloseConnections drops every open state stream. It is meant to run when
// the control server shuts down.
func (c controller) CloseConnections() {
	if closed := c.connRepo.CloseAll(); closed > 0 {
		c.logger.Info("closed state streams", "count", closed)
	}
}
