package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/cartapi"
	"github.com/roach88/cartsync/internal/config"
	"github.com/roach88/cartsync/internal/reconciler"
	"github.com/roach88/cartsync/internal/store"
)

// cartSession is a running reconciler wired to the configured service.
type cartSession struct {
	rec     *reconciler.Reconciler
	nav     *reconciler.RecordingNavigator
	journal *store.Store
	log     *slog.Logger

	cancel   context.CancelFunc
	runDone  chan struct{}
	shutdown func(context.Context) error
}

// loadConfig reads the config file and environment, then applies the
// global flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Journal != "" {
		cfg.Journal = opts.Journal
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// openSession starts a reconciler for one command. Callers must close it.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command, confirm reconciler.Confirmer) (*cartSession, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireService(); err != nil {
		return nil, WrapExitError(ExitCommandError, "missing service", err)
	}

	logger := newLogger(opts, cmd.ErrOrStderr())
	s := &cartSession{log: logger, shutdown: func(context.Context) error { return nil }}

	if opts.TraceStdout {
		shutdown, err := setupTracing(cmd.ErrOrStderr())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to set up tracing", err)
		}
		s.shutdown = shutdown
	}

	clientOpts := cfg.ClientOptions()
	clientOpts.Logger = logger
	client, err := cartapi.New(cfg.BaseURL, clientOpts)
	if err != nil {
		s.close()
		return nil, WrapExitError(ExitCommandError, "failed to create client", err)
	}

	clock := reconciler.NewClock()
	var journal reconciler.Journal
	if cfg.Journal != "" {
		st, err := store.Open(cfg.Journal)
		if err != nil {
			s.close()
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		s.journal = st
		journal = st

		last, err := st.LastSeq(ctx)
		if err != nil {
			s.close()
			return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		clock = reconciler.NewClockAt(last)

		pending, err := st.Pending(ctx)
		if err != nil {
			s.close()
			return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		for _, in := range pending {
			logger.Warn("journal has an intent without outcome", "id", in.ID, "op", in.Op, "seq", in.Seq)
		}
	}

	s.nav = reconciler.NewRecordingNavigator(cfg.CurrentPath)
	s.rec = reconciler.New(client, reconciler.Options{
		Navigator: s.nav,
		Confirmer: confirm,
		Notifier:  reconciler.LogNotifier{Logger: logger},
		Journal:   journal,
		Clock:     clock,
		Logger:    logger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.runDone = make(chan struct{})
	go func() {
		defer close(s.runDone)
		_ = s.rec.Run(runCtx)
	}()

	return s, nil
}

// close stops the reconciler, closes the journal and flushes spans.
func (s *cartSession) close() {
	if s.cancel != nil {
		s.cancel()
		<-s.runDone
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.log.Error("failed to close journal", "error", err)
		}
	}
	if err := s.shutdown(context.Background()); err != nil {
		s.log.Error("failed to flush spans", "error", err)
	}
}

// promptConfirmer asks on out and reads a yes/no answer from in.
func promptConfirmer(in io.Reader, out io.Writer) reconciler.Confirmer {
	reader := bufio.NewReader(in)
	return reconciler.ConfirmFunc(func(_ context.Context, prompt string) bool {
		fmt.Fprintf(out, "%s [y/N] ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}
