package reconciler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/cartsync/internal/cartapi"
	"github.com/roach88/cartsync/internal/store"
)

// Service is the remote cart. Implemented by *cartapi.Client.
type Service interface {
	GetCart(ctx context.Context) (cartapi.CartView, error)
	Add(ctx context.Context, productID int64, quantity int) (cartapi.AddResult, error)
	Update(ctx context.Context, productID int64, quantity int) (cartapi.MutationResult, error)
	Remove(ctx context.Context, productID int64) (cartapi.MutationResult, error)
}

// Navigator owns the current location and the login redirect.
type Navigator interface {
	// CurrentPath returns path plus query of the current location.
	CurrentPath() string

	// RedirectToLogin leaves for the login page, saving returnTo for
	// after authentication.
	RedirectToLogin(returnTo string)
}

// RecordingNavigator is a Navigator that remembers redirects instead of
// performing them.
type RecordingNavigator struct {
	mu        sync.Mutex
	path      string
	redirects []string
}

// NewRecordingNavigator creates a navigator positioned at path.
func NewRecordingNavigator(path string) *RecordingNavigator {
	return &RecordingNavigator{path: path}
}

func (n *RecordingNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *RecordingNavigator) RedirectToLogin(returnTo string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, returnTo)
}

// LastRedirect returns the most recent saved return target.
func (n *RecordingNavigator) LastRedirect() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.redirects) == 0 {
		return "", false
	}
	return n.redirects[len(n.redirects)-1], true
}

// Redirects returns every saved return target in order.
func (n *RecordingNavigator) Redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.redirects...)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

var (
	// AlwaysConfirm accepts every prompt.
	AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })

	// NeverConfirm declines every prompt.
	NeverConfirm Confirmer = ConfirmFunc(func(context.Context, string) bool { return false })
)

// Level is the severity of a user notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notifier shows transient messages to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// LogNotifier writes notifications to a slog.Logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(level Level, message string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if level == LevelError {
		logger.Warn(message, "level", string(level))
		return
	}
	logger.Info(message, "level", string(level))
}

type discardNotifier struct{}

func (discardNotifier) Notify(Level, string) {}

// Journal records intents and outcomes. Implemented by *store.Store.
type Journal interface {
	WriteIntent(ctx context.Context, in store.Intent) error
	WriteOutcome(ctx context.Context, out store.Outcome) error
}
