package inmemory

import (
	"log/slog"
	"sync"

	"github.com/pipprompter/server/internal/repository/connection"
	"github.com/pipprompter/server/pkg/wsrouter"
)

// repo tracks live websocket streams so they can be closed when the control
// server stops; hijacked connections are not closed by http.Server.Shutdown.
type repo struct {
	conns  map[string]*wsrouter.Conn
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		conns:  make(map[string]*wsrouter.Conn),
		logger: logger,
	}
}

func (r *repo) Add(id string, conn *wsrouter.Conn) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; ok {
		r.logger.Info(funcName, "conn_id", id, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.conns[id] = conn
	r.logger.Debug(funcName, "conn_id", id, "conns", len(r.conns))
	return nil
}

func (r *repo) Remove(id string) error {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return connection.ErrNotFound
	}

	delete(r.conns, id)
	r.logger.Debug(funcName, "conn_id", id, "conns", len(r.conns))
	return nil
}

func (r *repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

// CloseAll closes and forgets every tracked connection.
func (r *repo) CloseAll() int {
	funcName := "connection.inmemory.CloseAll"
	r.mu.Lock()
	defer r.mu.Unlock()

	closed := len(r.conns)
	for id, conn := range r.conns {
		if err := conn.Close(); err != nil {
			r.logger.Debug(funcName, "conn_id", id, "error", err)
		}
		delete(r.conns, id)
	}

	r.logger.Debug(funcName, "closed", closed)
	return closed
}
