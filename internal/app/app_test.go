package app

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func testConfig(t *testing.T) *AppConfig {
	return &AppConfig{
		Host:         "127.0.0.1",
		Port:         freePort(t),
		LogLevel:     "debug",
		PagePath:     filepath.Join(t.TempDir(), "index.html"),
		TickInterval: 10 * time.Millisecond,
		ScrollStep:   0.5,
		ScrollLoop:   false,
		RedisPort:    6379,
		RedisChannel: "pipprompter:state",
	}
}

type runningApp struct {
	app     *App
	restart chan struct{}
	cancel  context.CancelFunc
	done    chan error
}

func startApp(t *testing.T, cfg *AppConfig) *runningApp {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	a, err := New(ctx, cfg, slog.Default())
	require.NoError(t, err)

	r := &runningApp{
		app:     a,
		restart: make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() { r.done <- a.Run(ctx, r.restart) }()

	t.Cleanup(func() {
		cancel()
		<-r.done
		a.Close()
	})
	return r
}

func (r *runningApp) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.done:
		r.done <- err
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func waitReady(t *testing.T, baseURL string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAppServesAndScrolls(t *testing.T) {
	cfg := testConfig(t)
	r := startApp(t, cfg)
	base := "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	waitReady(t, base)

	resp, err := http.Get(base + "/")
	require.NoError(t, err)
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(page), "PiP Prompter", "embedded page is served when the file is missing")

	resp, err = http.Post(base+"/update", "application/json", strings.NewReader(`{"autoScroll":true,"speed":10}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return r.app.state.Get().ScrollProgress > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, r.app.state.Get().IsRunning)
	require.Eventually(t, func() bool {
		return r.app.state.Get().IsPipMode
	}, time.Second, 5*time.Millisecond)

	r.restart <- struct{}{}
	waitReady(t, base)

	r.stop(t)
	assert.False(t, r.app.state.Get().IsRunning)

	l, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	require.NoError(t, err, "port is released on shutdown")
	l.Close()
}

func TestAppStartFailureIsNonFatal(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	cfg := testConfig(t)
	cfg.Port = occupied.Addr().(*net.TCPAddr).Port
	r := startApp(t, cfg)

	select {
	case err := <-r.done:
		t.Fatalf("app exited after a failed bind: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	assert.False(t, r.app.state.Get().IsRunning)
	assert.True(t, r.app.state.Get().IsPipMode, "presentation keeps running")

	r.stop(t)
}

func TestAppPublishesToRedis(t *testing.T) {
	s := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.RedisHost = host
	cfg.RedisPort, err = strconv.Atoi(port)
	require.NoError(t, err)

	startApp(t, cfg)

	require.Eventually(t, func() bool {
		v, err := s.Get(cfg.RedisChannel + ":latest")
		return err == nil && strings.Contains(v, `"text":"PlaceHolder"`)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAppRedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisHost = "127.0.0.1"
	cfg.RedisPort = freePort(t)

	_, err := New(context.Background(), cfg, slog.Default())
	assert.Error(t, err)
}

func TestControlURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	a, err := New(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/", a.ControlURL())

	cfg.Secret = "secret"
	a, err = New(context.Background(), cfg, slog.Default())
	require.NoError(t, err)

	u, err := url.Parse(a.ControlURL())
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", u.Host)
	assert.NotEmpty(t, u.Query().Get("token"))
}

func TestAppConfigValidate(t *testing.T) {
	assert.NoError(t, testConfig(t).Validate())

	for name, mutate := range map[string]func(*AppConfig){
		"port":      func(c *AppConfig) { c.Port = 70000 },
		"host":      func(c *AppConfig) { c.Host = "not-an-ip" },
		"log level": func(c *AppConfig) { c.LogLevel = "LOUD" },
		"tick":      func(c *AppConfig) { c.TickInterval = 0 },
		"step":      func(c *AppConfig) { c.ScrollStep = -1 },
		"channel":   func(c *AppConfig) { c.RedisChannel = "" },
	} {
		cfg := testConfig(t)
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("warn")
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	_, err = NewLogger("verbose")
	assert.Error(t, err)
}
