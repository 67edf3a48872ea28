package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockServer_ServesFixture(t *testing.T) {
	ready := make(chan string, 1)
	opts := &MockServerOptions{RootOptions: &RootOptions{Format: "text"}, Addr: "127.0.0.1:0", Ready: ready}
	cmd := NewMockServerCommand(opts.RootOptions)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd.SetContext(ctx)

	// Drive runMockServer directly so the test can hook Ready.
	done := make(chan error, 1)
	go func() { done <- runMockServer(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/cart", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "session", Value: "demo"})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count int         `json:"count"`
		Total json.Number `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body.Count)
	assert.Equal(t, "1017.99", body.Total.String())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, out.String(), "Sessions: [demo empty]")
}

func TestMockServer_BadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  - {product_id: 1, title: x, price: free}\n"), 0o644))

	_, _, err := execute(t, "", "mock-server", "--seed", path, "--addr", "127.0.0.1:0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
