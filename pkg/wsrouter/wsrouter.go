package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrUnknownMessageType = errors.New("unknown message type")

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Conn serializes writes to the underlying websocket; gorilla connections
// allow at most one concurrent writer.
type Conn struct {
	*websocket.Conn
	mu sync.Mutex
}

func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{Conn: conn}
}

func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Conn.WriteJSON(v)
}

type HandlerFunc func(ctx context.Context, conn *Conn, payload json.RawMessage) error

type Middleware func(next HandlerFunc) HandlerFunc

type WSRouter struct {
	routes      map[string]HandlerFunc
	middlewares []Middleware
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

func (r *WSRouter) Use(mw ...Middleware) {
	r.middlewares = append(r.middlewares, mw...)
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// ServeConn reads messages until the connection fails and dispatches them by
// type. Handler errors are reported to the client as ERROR messages and do
// not close the connection.
func (r *WSRouter) ServeConn(ctx context.Context, conn *Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := writeError(conn, fmt.Errorf("invalid message: %w", err)); err != nil {
				return err
			}
			continue
		}

		handler, ok := r.routes[msg.Type]
		if !ok {
			handler = func(context.Context, *Conn, json.RawMessage) error {
				return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
			}
		}
		for i := len(r.middlewares) - 1; i >= 0; i-- {
			handler = r.middlewares[i](handler)
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		if err := handler(msgCtx, conn, msg.Payload); err != nil {
			if err := writeError(conn, err); err != nil {
				return err
			}
		}
	}
}

func writeError(conn *Conn, err error) error {
	return conn.WriteJSON(&Output{
		Type: "ERROR",
		Payload: map[string]any{
			"message": err.Error(),
		},
	})
}
