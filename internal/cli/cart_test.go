package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/fakecart"
)

// startDemoService serves the built-in fixture: session "demo" holds
// iPhone 1 (1001) x2 and Charger (2001) x1, total 1017.99.
func startDemoService(t *testing.T) (*fakecart.Server, string) {
	t.Helper()
	f, err := fakecart.DemoFixture()
	require.NoError(t, err)
	svc, err := fakecart.NewFromFixture(f, fakecart.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	return svc, srv.URL
}

func writeCLIConfig(t *testing.T, baseURL, session string) string {
	t.Helper()
	body := fmt.Sprintf("base_url: %s\nsession: %q\ncurrent_path: /cart\n", baseURL, session)
	path := filepath.Join(t.TempDir(), "cartsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

type cartResponse struct {
	Status string     `json:"status"`
	Data   CartResult `json:"data"`
	Error  *struct {
		Code    string     `json:"code"`
		Message string     `json:"message"`
		Details CartResult `json:"details"`
	} `json:"error"`
}

func decodeCart(t *testing.T, out string) cartResponse {
	t.Helper()
	var resp cartResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestShow_Text(t *testing.T) {
	_, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")

	out, _, err := execute(t, "", "show", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Cart: 3 item(s), total 1017.99")
	assert.Contains(t, out, "iPhone 1")
	assert.Contains(t, out, "998.00")
}

func TestShow_AnonymousIsEmpty(t *testing.T) {
	_, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "")

	out, _, err := execute(t, "", "show", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Your cart is empty")
}

func TestOpen_AnonymousNeedsLogin(t *testing.T) {
	_, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "")

	out, _, err := execute(t, "", "open", "--config", cfg, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeCart(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeLoginRequired, resp.Error.Code)
	assert.Equal(t, "/cart", resp.Error.Details.RedirectTo)
}

func TestSet_ClampsAndPatches(t *testing.T) {
	svc, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")

	out, _, err := execute(t, "", "set", "1001", "15", "--config", cfg, "--format", "json")
	require.NoError(t, err)

	resp := decodeCart(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "set_quantity", resp.Data.Op)
	assert.Equal(t, "Quantity updated", resp.Data.Message)
	assert.Equal(t, 10, resp.Data.SentQuantity)
	assert.Equal(t, 11, resp.Data.Count)
	assert.Equal(t, "5009.99", resp.Data.Total)
	require.Len(t, resp.Data.Items, 2)
	assert.Equal(t, "4990.00", resp.Data.Items[0].Subtotal)

	snap, ok := svc.Cart("demo")
	require.True(t, ok)
	assert.Equal(t, 11, snap.Count)
}

func TestIncDec(t *testing.T) {
	svc, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")

	_, _, err := execute(t, "", "inc", "2001", "--config", cfg)
	require.NoError(t, err)
	_, _, err = execute(t, "", "dec", "1001", "--config", cfg)
	require.NoError(t, err)

	snap, _ := svc.Cart("demo")
	assert.Equal(t, 3, snap.Count)
	assert.True(t, decimal.RequireFromString("538.98").Equal(snap.Total), snap.Total.String())
}

func TestAdd_Rejected(t *testing.T) {
	_, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")

	out, _, err := execute(t, "", "add", "1001", "--qty", "9", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_REJECTED]: You can have at most 10 of iPhone 1")
}

func TestAdd_OK(t *testing.T) {
	_, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")

	out, _, err := execute(t, "", "add", "1002", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "iPhone 2 added to cart")
	assert.Contains(t, out, "Cart: 4 item(s)")
}

func TestRemove_Prompt(t *testing.T) {
	svc, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")

	out, stderr, err := execute(t, "n\n", "remove", "2001", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Are you sure you want to remove this item from your cart? [y/N]")
	assert.Contains(t, out, "Removal cancelled")
	snap, _ := svc.Cart("demo")
	assert.Equal(t, 3, snap.Count)

	out, _, err = execute(t, "yes\n", "remove", "2001", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Item removed from cart")
	snap, _ = svc.Cart("demo")
	assert.Equal(t, 2, snap.Count)
}

func TestRemove_YesSkipsPrompt(t *testing.T) {
	svc, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")

	_, stderr, err := execute(t, "", "remove", "1001", "--yes", "--config", cfg)
	require.NoError(t, err)
	assert.NotContains(t, stderr, "Are you sure")

	snap, _ := svc.Cart("demo")
	assert.Equal(t, 1, snap.Count)
}

func TestRowOp_UnknownItem(t *testing.T) {
	svc, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")

	out, _, err := execute(t, "", "inc", "9999", "--config", cfg, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeCart(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnknownItem, resp.Error.Code)

	for _, r := range svc.Requests() {
		assert.Equal(t, fakecart.OpGet, r.Op, "no mutation may reach the service")
	}
}

func TestNetworkFailure(t *testing.T) {
	svc, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")
	svc.FailNext(503)

	out, _, err := execute(t, "", "show", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_NETWORK]: Network error. Please try again.")
}

func TestCartCommand_ArgumentErrors(t *testing.T) {
	_, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")

	_, _, err := execute(t, "", "set", "abc", "2", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "", "set", "1001", "two", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCartCommand_NoService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session: demo\n"), 0o644))
	t.Setenv("CARTSYNC_BASE_URL", "")

	_, _, err := execute(t, "", "show", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no cart service configured")
}

func TestBaseURLFlagOverridesConfig(t *testing.T) {
	_, url := startDemoService(t)
	cfg := writeCLIConfig(t, "http://127.0.0.1:1", "demo")

	out, _, err := execute(t, "", "show", "--config", cfg, "--base-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Cart: 3 item(s)")
}

func TestTraceStdout(t *testing.T) {
	_, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")

	_, stderr, err := execute(t, "", "show", "--config", cfg, "--trace-stdout")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"Name": "cart.intent.refresh"`)
}
