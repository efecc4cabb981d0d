package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pipprompter/server/internal/controller"
	"github.com/pipprompter/server/internal/domain"
	connectionInmemory "github.com/pipprompter/server/internal/repository/connection/inmemory"
	stateInmemory "github.com/pipprompter/server/internal/repository/state/inmemory"
	"github.com/pipprompter/server/internal/service/access"
	"github.com/pipprompter/server/internal/service/presentation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noPage struct{}

func (noPage) Content() ([]byte, bool) { return nil, false }

type stateGetter interface {
	Get() domain.PresentationState
}

func newTestServer(t *testing.T, secret string) (*httptest.Server, stateGetter) {
	t.Helper()
	logger := slog.Default()
	repo := stateInmemory.NewRepo(domain.DefaultState(), logger)
	c := controller.NewController(
		presentation.NewService(repo, logger),
		repo,
		noPage{},
		access.NewService(secret, 0),
		connectionInmemory.NewRepo(logger),
		logger,
	)

	srv := httptest.NewServer(c.GetMux())
	t.Cleanup(srv.Close)
	return srv, repo
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestStateCmd(t *testing.T) {
	srv, repo := newTestServer(t, "")

	out, _, err := run(t, "--server", srv.URL, "state")
	require.NoError(t, err)

	var s domain.PresentationState
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, repo.Get(), s)
}

func TestSetCmdSendsOnlyChangedFlags(t *testing.T) {
	srv, repo := newTestServer(t, "")
	before := repo.Get()

	_, _, err := run(t, "--server", srv.URL, "set", "--text", "Hello", "--speed", "5", "--scale", "h4x3")
	require.NoError(t, err)

	after := repo.Get()
	assert.Equal(t, "Hello", after.Text)
	assert.Equal(t, 5.0, after.Speed)
	assert.Equal(t, domain.Scale4x3, after.Scale)
	assert.Equal(t, before.FontSize, after.FontSize, "unset flags are not sent")
	assert.Equal(t, before.TextColorHex, after.TextColorHex)
	assert.Equal(t, before.AutoScroll, after.AutoScroll)
}

func TestSetCmdReportsRejected(t *testing.T) {
	srv, repo := newTestServer(t, "")

	_, stderr, err := run(t, "--server", srv.URL, "set", "--speed", "500", "--color", "00FF00")
	require.NoError(t, err)
	assert.Contains(t, stderr, "ignored speed")
	assert.Equal(t, "00FF00", repo.Get().TextColorHex)
	assert.Equal(t, 1.0, repo.Get().Speed)
}

func TestScrollCmd(t *testing.T) {
	srv, repo := newTestServer(t, "")

	_, _, err := run(t, "--server", srv.URL, "scroll", "on")
	require.NoError(t, err)
	assert.True(t, repo.Get().AutoScroll)

	_, _, err = run(t, "--server", srv.URL, "scroll", "off")
	require.NoError(t, err)
	assert.False(t, repo.Get().AutoScroll)

	_, _, err = run(t, "--server", srv.URL, "scroll", "sideways")
	assert.Error(t, err)
}

func TestQRCmd(t *testing.T) {
	srv, _ := newTestServer(t, "")
	path := filepath.Join(t.TempDir(), "qr.png")

	out, _, err := run(t, "--server", srv.URL, "qr", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestTokenIsSent(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	_, _, err := run(t, "--server", srv.URL, "state")
	assert.ErrorIs(t, err, ErrServer)

	token, err := access.NewService("secret", 0).Issue()
	require.NoError(t, err)
	_, _, err = run(t, "--server", srv.URL, "--token", token, "state")
	assert.NoError(t, err)
}
