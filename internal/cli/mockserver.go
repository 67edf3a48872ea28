package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/fakecart"
)

// MockServerOptions holds flags for the mock-server command.
type MockServerOptions struct {
	*RootOptions
	Addr string
	Seed string

	// Ready receives the bound address once the server accepts connections
	// (for testing).
	Ready chan<- string
}

// NewMockServerCommand creates the mock-server command.
func NewMockServerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MockServerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve a fake cart service",
		Long: `Serve the fake cart service over HTTP for manual testing.

Without --seed the built-in catalog is used with two sessions: "demo"
(two rows) and "empty". Send the session as the "session" cookie, or point
cartsync at it:

  cartsync mock-server --addr :8089 &
  CARTSYNC_SESSION=demo cartsync show --base-url http://localhost:8089`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMockServer(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8089", "listen address")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "fixture file with catalog and sessions (YAML)")

	return cmd
}

func runMockServer(opts *MockServerOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	fixture, err := loadFixture(opts.Seed)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load fixture", err)
	}
	service, err := fakecart.NewFromFixture(fixture, fakecart.Options{Logger: logger})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid fixture", err)
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Handler: service, ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	addr := ln.Addr().String()
	logger.Info("mock server listening", "addr", addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Fake cart service listening on http://%s\n", addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Sessions: %v\n", sessionNames(fixture))
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.Ready != nil {
		opts.Ready <- addr
	}

	select {
	case err := <-serveErr:
		return WrapExitError(ExitFailure, "server error", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown error", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("mock server stopped")
	return nil
}

func loadFixture(path string) (*fakecart.Fixture, error) {
	if path == "" {
		return fakecart.DemoFixture()
	}
	return fakecart.LoadFixture(path)
}

func sessionNames(f *fakecart.Fixture) []string {
	names := make([]string, 0, len(f.Sessions))
	for name := range f.Sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
