package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/pipprompter/server/internal/domain"
	"github.com/pipprompter/server/internal/service/presentation"
	"github.com/pipprompter/server/pkg/wsrouter"
)

// stream pushes the current snapshot on connect and every newer one after
// it, while serving UPDATE and GET_STATE messages from the client.
func (c controller) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	wsConn := wsrouter.NewConn(conn)

	connID := uuid.NewString()
	if err := c.connRepo.Add(connID, wsConn); err != nil {
		c.logger.WarnContext(r.Context(), "failed to register connection", "error", err)
		conn.Close()
		return
	}
	defer c.connRepo.Remove(connID)

	subID, snapshots, err := c.stateFeed.Subscribe(1)
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to subscribe to state", "error", err)
		conn.Close()
		return
	}
	defer c.stateFeed.Unsubscribe(subID)

	ctx, cancel := context.WithCancel(r.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.pushSnapshots(ctx, wsConn, snapshots); err != nil {
			c.logger.DebugContext(ctx, "state push stopped", "error", err)
			conn.Close()
		}
	}()

	c.logger.InfoContext(ctx, "state stream opened", "conn_id", connID, "streams", c.connRepo.Len())
	if err := c.wsRouter.ServeConn(ctx, wsConn); err != nil {
		c.logger.DebugContext(ctx, "state stream closed", "conn_id", connID, "error", err)
	}

	cancel()
	conn.Close()
	<-done
}

// pushSnapshots writes the current state, then every snapshot with a higher
// revision than the last one written.
func (c controller) pushSnapshots(ctx context.Context, conn *wsrouter.Conn, snapshots <-chan domain.PresentationState) error {
	current := c.presentationService.GetState(ctx)
	if err := writeState(conn, current); err != nil {
		return err
	}
	lastRevision := current.Revision

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-snapshots:
			if !ok {
				return nil
			}
			if s.Revision <= lastRevision {
				continue
			}
			if err := writeState(conn, s); err != nil {
				return err
			}
			lastRevision = s.Revision
		}
	}
}

func (c controller) handleUpdate(ctx context.Context, conn *wsrouter.Conn, payload json.RawMessage) error {
	updateResp, err := c.presentationService.Update(ctx, &presentation.UpdateParams{
		Body: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	if err := conn.WriteJSON(&wsrouter.Output{
		Type:    msgTypeUpdated,
		Payload: updateResp,
	}); err != nil {
		return fmt.Errorf("failed to write to conn: %w", err)
	}

	return nil
}

func (c controller) handleGetState(ctx context.Context, conn *wsrouter.Conn, _ json.RawMessage) error {
	if err := writeState(conn, c.presentationService.GetState(ctx)); err != nil {
		return fmt.Errorf("failed to write to conn: %w", err)
	}

	return nil
}

func writeState(conn *wsrouter.Conn, s domain.PresentationState) error {
	return conn.WriteJSON(&wsrouter.Output{
		Type:    msgTypeState,
		Payload: s,
	})
}
