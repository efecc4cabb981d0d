package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pipprompter/server/pkg/wsrouter"
)

const (
	msgTypeUpdate   = "UPDATE"
	msgTypeUpdated  = "UPDATED"
	msgTypeGetState = "GET_STATE"
	msgTypeState    = "STATE"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		c.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		c.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/", c.getPage)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(c.authMw)

		r.Get("/state", c.getState)
		r.Post("/update", c.update)
		r.Get("/qr.png", c.getQRCode)
		r.Get("/ws", c.stream)
	})

	return r
}

func (c controller) getWSRouter() *wsrouter.WSRouter {
	r := wsrouter.New()

	r.Use(c.wsRequestIdMw())
	r.Use(c.loggerWSMw())

	r.Handle(msgTypeUpdate, c.handleUpdate)
	r.Handle(msgTypeGetState, c.handleGetState)

	return r
}
