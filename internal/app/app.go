package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pipprompter/server/internal/adapter/logview"
	"github.com/pipprompter/server/internal/adapter/redispub"
	"github.com/pipprompter/server/internal/controller"
	"github.com/pipprompter/server/internal/domain"
	connectionInmemory "github.com/pipprompter/server/internal/repository/connection/inmemory"
	stateInmemory "github.com/pipprompter/server/internal/repository/state/inmemory"
	"github.com/pipprompter/server/internal/server"
	"github.com/pipprompter/server/internal/service/access"
	"github.com/pipprompter/server/internal/service/autoscroll"
	"github.com/pipprompter/server/internal/service/presentation"
	"github.com/pipprompter/server/pkg/ctxlogger"
	"github.com/pipprompter/server/pkg/pageasset"
	"github.com/pipprompter/server/pkg/redisclient"
	"github.com/pipprompter/server/pkg/validator"
	"github.com/pipprompter/server/web"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 30 * time.Second

type AppConfig struct {
	Secret        string        `json:"-"`
	Host          string        `json:"host" validate:"required,ip"`
	Port          int           `json:"port" validate:"min=1,max=65535"`
	LogLevel      string        `json:"log_level" validate:"required"`
	PagePath      string        `json:"page_path"`
	TickInterval  time.Duration `json:"tick_interval" validate:"gt=0"`
	ScrollStep    float64       `json:"scroll_step" validate:"gt=0"`
	ScrollLoop    bool          `json:"scroll_loop"`
	RedisHost     string        `json:"redis_host"`
	RedisPort     int           `json:"redis_port" validate:"min=1,max=65535"`
	RedisPassword string        `json:"-"`
	RedisChannel  string        `json:"redis_channel" validate:"required"`
}

func (cfg *AppConfig) Validate() error {
	var errs []error
	if err := validator.NewValidator().Err(cfg); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return l, nil
}

func NewLogger(level string) (*slog.Logger, error) {
	logLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type stateStore interface {
	Get() domain.PresentationState
	Merge(domain.Patch) (domain.PresentationState, []domain.FieldError)
}

// App wires the state store to its writers and readers: the control server,
// the autoscroll driver and the presentation adapters.
type App struct {
	cfg    *AppConfig
	logger *slog.Logger

	state     stateStore
	server    *server.Server
	page      *pageasset.Page
	driver    *autoscroll.Driver
	logView   *logview.Adapter
	publisher *redispub.Publisher
	rc        *redis.Client

	controlToken string
}

func New(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (*App, error) {
	initial := domain.DefaultState()
	initial.ServerAddress = cfg.Host
	initial.ServerPort = cfg.Port
	stateRepo := stateInmemory.NewRepo(initial, logger)

	accessService := access.NewService(cfg.Secret, 0)
	var controlToken string
	if accessService.Enabled() {
		token, err := accessService.Issue()
		if err != nil {
			return nil, fmt.Errorf("failed to issue control token: %w", err)
		}
		controlToken = token
	}

	page := pageasset.New(cfg.PagePath, web.IndexHTML, logger)
	if err := page.Load(); err != nil {
		logger.WarnContext(ctx, "control page unavailable", "error", err)
	}

	presentationService := presentation.NewService(stateRepo, logger)
	controller := controller.NewController(
		presentationService,
		stateRepo,
		page,
		accessService,
		connectionInmemory.NewRepo(logger),
		logger,
	)
	srv := server.New(stateRepo, controller.GetMux(), logger)
	srv.OnShutdown(controller.CloseConnections)

	a := &App{
		cfg:    cfg,
		logger: logger,
		state:  stateRepo,
		server: srv,
		page:   page,
		driver: autoscroll.NewDriver(stateRepo, autoscroll.Config{
			Interval: cfg.TickInterval,
			Step:     cfg.ScrollStep,
			Loop:     cfg.ScrollLoop,
		}, logger),
		logView:      logview.New(stateRepo, logger),
		controlToken: controlToken,
	}

	if cfg.RedisHost != "" {
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		a.rc = rc
		a.publisher = redispub.NewPublisher(rc, cfg.RedisChannel, stateRepo, logger)
	}

	return a, nil
}

// ControlURL is the address a remote client opens, with the control token
// when access control is enabled.
func (a *App) ControlURL() string {
	s := a.state.Get()

	host := s.ServerAddress
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "localhost"
	}

	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, strconv.Itoa(s.ServerPort)),
		Path:   "/",
	}
	if a.controlToken != "" {
		u.RawQuery = url.Values{"token": {a.controlToken}}.Encode()
	}

	return u.String()
}

// Run starts the background components and the control server, then blocks
// until ctx is done. Each value received on restart rebinds the control
// server from the current state.
func (a *App) Run(ctx context.Context, restart <-chan struct{}) error {
	var wg sync.WaitGroup
	background := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "background component failed", "component", name, "error", err)
			}
		}()
	}

	background("page watcher", a.page.Watch)
	background("autoscroll", a.driver.Run)
	background("log view", a.logView.Run)
	if a.publisher != nil {
		background("redis publisher", a.publisher.Run)
	}

	a.startServer(ctx)

	for {
		select {
		case <-restart:
			a.logger.InfoContext(ctx, "restarting control server")
			a.startServer(ctx)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			err := a.server.Stop(shutdownCtx)
			wg.Wait()
			if err != nil {
				return fmt.Errorf("failed to stop control server: %w", err)
			}

			return nil
		}
	}
}

// startServer failures are not fatal: the presentation keeps running and a
// restart may succeed once the address is free.
func (a *App) startServer(ctx context.Context) {
	if err := a.server.Start(ctx); err != nil {
		a.logger.ErrorContext(ctx, "control server unavailable", "error", err)
		return
	}

	a.logger.InfoContext(ctx, "control server ready", "url", a.ControlURL(), "page_title", a.page.Title())
}

func (a *App) Close() {
	if a.rc != nil {
		a.rc.Close()
	}
}

// Run loads the whole application and serves until SIGINT, SIGTERM or
// SIGQUIT. SIGHUP restarts the control server.
func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)

	restart := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-sig:
				if s == syscall.SIGHUP {
					select {
					case restart <- struct{}{}:
					default:
					}
					continue
				}

				logger.InfoContext(ctx, "shutting down", "signal", s.String())
				cancel()
				return
			}
		}
	}()

	return a.Run(ctx, restart)
}
