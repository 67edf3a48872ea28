package cartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"

	"github.com/roach88/cartsync/internal/cart"
)

const (
	// DefaultTimeout bounds a single call when Options.Timeout is zero.
	DefaultTimeout = 10 * time.Second

	// DefaultSessionCookie is the cookie name the storefront uses for its session.
	DefaultSessionCookie = "session"

	// maxBodySize caps how much of a response is read.
	maxBodySize = 1 << 20

	tracerName = "github.com/roach88/cartsync/internal/cartapi"
)

// Routes holds the endpoint paths, relative to the base URL.
type Routes struct {
	Get    string `yaml:"get"`
	Add    string `yaml:"add"`
	Update string `yaml:"update"`
	Remove string `yaml:"remove"`
}

// DefaultRoutes returns the standard cart endpoint paths.
func DefaultRoutes() Routes {
	return Routes{
		Get:    "/cart",
		Add:    "/cart/add",
		Update: "/cart/update",
		Remove: "/cart/remove",
	}
}

// Options configures a Client. The zero value is usable.
type Options struct {
	// HTTPClient overrides the transport. Its Jar is replaced when Session is set.
	HTTPClient *http.Client

	// Routes overrides endpoint paths. Empty fields fall back to DefaultRoutes.
	Routes Routes

	// Session is the session cookie value. Empty means anonymous.
	Session string

	// SessionCookie is the cookie name, DefaultSessionCookie when empty.
	SessionCookie string

	// Timeout bounds each call, DefaultTimeout when zero.
	Timeout time.Duration

	// RequestIDs generates X-Request-ID values, UUIDv7Generator when nil.
	RequestIDs RequestIDGenerator

	// Logger receives debug output, slog.Default() when nil.
	Logger *slog.Logger

	// Tracer overrides the global OpenTelemetry tracer.
	Tracer trace.Tracer
}

// CartView is the full cart as returned by the get endpoint.
type CartView struct {
	Items  []cart.Item
	Totals cart.Totals
}

// AddResult is the reply to an add call.
type AddResult struct {
	Count   int
	Message string
}

// MutationResult is the reply to an update or remove call.
type MutationResult struct {
	Totals  cart.Totals
	Message string
}

// Client talks to the remote cart service over HTTP/JSON.
//
// A Client is safe for concurrent use, though the reconciler only ever has
// one call in flight.
type Client struct {
	http   *http.Client
	urls   Routes
	ids    RequestIDGenerator
	log    *slog.Logger
	tracer trace.Tracer
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	routes := opts.Routes
	defaults := DefaultRoutes()
	if routes.Get == "" {
		routes.Get = defaults.Get
	}
	if routes.Add == "" {
		routes.Add = defaults.Add
	}
	if routes.Update == "" {
		routes.Update = defaults.Update
	}
	if routes.Remove == "" {
		routes.Remove = defaults.Remove
	}

	var urls Routes
	for _, r := range []struct {
		dst  *string
		path string
	}{
		{&urls.Get, routes.Get},
		{&urls.Add, routes.Add},
		{&urls.Update, routes.Update},
		{&urls.Remove, routes.Remove},
	} {
		u, err := url.JoinPath(baseURL, r.path)
		if err != nil {
			return nil, fmt.Errorf("join route %q: %w", r.path, err)
		}
		*r.dst = u
	}

	hc := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		hc = &copied
	}
	hc.Timeout = opts.Timeout
	if hc.Timeout == 0 {
		hc.Timeout = DefaultTimeout
	}

	if opts.Session != "" {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		name := opts.SessionCookie
		if name == "" {
			name = DefaultSessionCookie
		}
		jar.SetCookies(base, []*http.Cookie{{Name: name, Value: opts.Session, Path: "/"}})
		hc.Jar = jar
	}

	ids := opts.RequestIDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Client{
		http:   hc,
		urls:   urls,
		ids:    ids,
		log:    logger,
		tracer: tracer,
	}, nil
}

// GetCart fetches the full cart.
func (c *Client) GetCart(ctx context.Context) (CartView, error) {
	var wc wireCart
	if err := c.do(ctx, "get", http.MethodGet, c.urls.Get, nil, &wc); err != nil {
		return CartView{}, err
	}

	rows := wc.CartItems
	if rows == nil {
		rows = wc.Items
	}
	if wc.Total == nil || wc.Count == nil {
		return CartView{}, &Error{Kind: KindMalformed, Op: "get", Message: "response is missing total or count"}
	}

	items := make([]cart.Item, 0, len(rows))
	for _, r := range rows {
		if r.Price.IsNegative() {
			return CartView{}, &Error{
				Kind:    KindMalformed,
				Op:      "get",
				Message: fmt.Sprintf("product %d has negative price %s", r.ProductID, r.Price),
			}
		}
		items = append(items, cart.Item{
			ProductID: r.ProductID,
			Title:     r.Title,
			UnitPrice: r.Price,
			Quantity:  r.Quantity,
			ImageRef:  r.Image,
		})
	}

	return CartView{
		Items:  items,
		Totals: cart.Totals{Total: *wc.Total, Count: *wc.Count},
	}, nil
}

// Add asks the service to add quantity units of productID.
func (c *Client) Add(ctx context.Context, productID int64, quantity int) (AddResult, error) {
	var res wireAddResult
	body := mutationRequest{ProductID: productID, Quantity: quantity}
	if err := c.do(ctx, "add", http.MethodPost, c.urls.Add, body, &res); err != nil {
		return AddResult{}, err
	}
	if !res.Success {
		return AddResult{}, &Error{Kind: KindRejected, Op: "add", Status: http.StatusOK, Message: res.Message}
	}
	if res.CartCount == nil {
		return AddResult{}, &Error{Kind: KindMalformed, Op: "add", Message: "response is missing cart_count"}
	}
	return AddResult{Count: *res.CartCount, Message: res.Message}, nil
}

// Update sets the quantity of productID.
func (c *Client) Update(ctx context.Context, productID int64, quantity int) (MutationResult, error) {
	return c.mutate(ctx, "update", c.urls.Update, mutationRequest{ProductID: productID, Quantity: quantity})
}

// Remove deletes productID from the cart.
func (c *Client) Remove(ctx context.Context, productID int64) (MutationResult, error) {
	return c.mutate(ctx, "remove", c.urls.Remove, mutationRequest{ProductID: productID})
}

func (c *Client) mutate(ctx context.Context, op, target string, body mutationRequest) (MutationResult, error) {
	var res wireMutationResult
	if err := c.do(ctx, op, http.MethodPost, target, body, &res); err != nil {
		return MutationResult{}, err
	}
	if !res.Success {
		return MutationResult{}, &Error{Kind: KindRejected, Op: op, Status: http.StatusOK, Message: res.Message}
	}
	if res.Total == nil || res.Count == nil {
		return MutationResult{}, &Error{Kind: KindMalformed, Op: op, Message: "response is missing total or count"}
	}
	return MutationResult{
		Totals:  cart.Totals{Total: *res.Total, Count: *res.Count},
		Message: res.Message,
	}, nil
}

// do performs one request and decodes a 2xx body into out. Every failure is
// returned as *Error.
func (c *Client) do(ctx context.Context, op, method, target string, body, out any) (err error) {
	reqID := c.ids.Generate()

	ctx, span := c.tracer.Start(ctx, "cart."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("cart.request_id", reqID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindOf(err)))
		}
		span.End()
	}()

	var payload io.Reader
	if body != nil {
		data, mErr := json.Marshal(body)
		if mErr != nil {
			return &Error{Kind: KindNetwork, Op: op, RequestID: reqID, Err: fmt.Errorf("encode request: %w", mErr)}
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, RequestID: reqID, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("cart request failed", "op", op, "request_id", reqID, "error", err)
		return &Error{Kind: KindNetwork, Op: op, RequestID: reqID, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.log.Debug("cart request",
		"op", op,
		"status", resp.StatusCode,
		"request_id", reqID,
		"elapsed", time.Since(start),
	)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, RequestID: reqID, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &Error{Kind: KindUnauthenticated, Op: op, Status: resp.StatusCode, RequestID: reqID, Message: messageFrom(data)}
	case resp.StatusCode >= 500:
		return &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, RequestID: reqID, Message: messageFrom(data)}
	case resp.StatusCode >= 400:
		return &Error{Kind: KindRejected, Op: op, Status: resp.StatusCode, RequestID: reqID, Message: messageFrom(data)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &Error{Kind: KindMalformed, Op: op, Status: resp.StatusCode, RequestID: reqID, Message: "unexpected status"}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindMalformed, Op: op, Status: resp.StatusCode, RequestID: reqID, Err: err}
	}
	return nil
}

// messageFrom extracts a human message from an error body, tolerating
// bodies that are not JSON.
func messageFrom(data []byte) string {
	var m wireMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	if m.Message != "" {
		return m.Message
	}
	return m.Error
}
