package fakecart

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/cartapi"
)

// Product is a catalog entry.
type Product struct {
	ID    int64
	Title string
	Price decimal.Decimal
	Image string
}

// Operation names used in the request log.
const (
	OpGet    = "get"
	OpAdd    = "add"
	OpUpdate = "update"
	OpRemove = "remove"
)

// Request is one call the server received, recorded after it was handled.
type Request struct {
	Op        string
	Session   string
	ProductID int64
	Quantity  int
	Status    int
}

// Options configures a Server.
type Options struct {
	Catalog       []Product
	Routes        cartapi.Routes
	SessionCookie string
	Logger        *slog.Logger
}

type line struct {
	productID int64
	quantity  int
}

// Server is the fake cart service. Safe for concurrent use.
type Server struct {
	router *mux.Router
	cookie string
	log    *slog.Logger

	mu       sync.Mutex
	catalog  map[int64]Product
	sessions map[string][]line
	failures []int
	requests []Request
}

// New creates a server with the given catalog and no sessions.
func New(opts Options) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		cookie:   opts.SessionCookie,
		log:      opts.Logger,
		catalog:  make(map[int64]Product, len(opts.Catalog)),
		sessions: make(map[string][]line),
	}
	if s.cookie == "" {
		s.cookie = cartapi.DefaultSessionCookie
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	for _, p := range opts.Catalog {
		s.catalog[p.ID] = p
	}

	routes := opts.Routes
	def := cartapi.DefaultRoutes()
	if routes.Get == "" {
		routes.Get = def.Get
	}
	if routes.Add == "" {
		routes.Add = def.Add
	}
	if routes.Update == "" {
		routes.Update = def.Update
	}
	if routes.Remove == "" {
		routes.Remove = def.Remove
	}

	s.router.Use(s.injectFailures, s.requireSession)
	s.router.HandleFunc(routes.Get, s.handleGet).Methods(http.MethodGet).Name(OpGet)
	s.router.HandleFunc(routes.Add, s.handleAdd).Methods(http.MethodPost).Name(OpAdd)
	s.router.HandleFunc(routes.Update, s.handleUpdate).Methods(http.MethodPost).Name(OpUpdate)
	s.router.HandleFunc(routes.Remove, s.handleRemove).Methods(http.MethodPost).Name(OpRemove)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Login creates an empty cart for session. An existing cart is kept.
func (s *Server) Login(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session]; !ok {
		s.sessions[session] = []line{}
	}
}

// Logout ends session; its cart is discarded.
func (s *Server) Logout(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
}

// Seed puts quantity units of productID in the session's cart, logging the
// session in if needed.
func (s *Server) Seed(session string, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.catalog[productID]; !ok {
		return fmt.Errorf("seed: product %d is not in the catalog", productID)
	}
	if quantity < cart.MinQuantity || quantity > cart.MaxQuantity {
		return fmt.Errorf("seed: quantity %d for product %d out of range", quantity, productID)
	}

	lines := s.sessions[session]
	if i := findLine(lines, productID); i >= 0 {
		lines[i].quantity = quantity
	} else {
		lines = append(lines, line{productID: productID, quantity: quantity})
	}
	s.sessions[session] = lines
	return nil
}

// FailNext makes the next request fail with status, before any session
// check. Calls queue up.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, status)
}

// Requests returns every request handled so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Cart returns the server-side cart for session.
func (s *Server) Cart(session string) (cart.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, ok := s.sessions[session]
	if !ok {
		return cart.Snapshot{}, false
	}
	items, totals := s.view(lines)
	return cart.Replace(items, totals), true
}

// view builds the rows and totals for lines. Caller holds mu.
func (s *Server) view(lines []line) ([]cart.Item, cart.Totals) {
	items := make([]cart.Item, 0, len(lines))
	totals := cart.Totals{Total: decimal.Zero}
	for _, l := range lines {
		p := s.catalog[l.productID]
		it := cart.Item{
			ProductID: l.productID,
			Title:     p.Title,
			UnitPrice: p.Price,
			Quantity:  l.quantity,
			ImageRef:  p.Image,
		}
		items = append(items, it)
		totals.Total = totals.Total.Add(it.Subtotal())
		totals.Count += l.quantity
	}
	return items, totals
}

func findLine(lines []line, productID int64) int {
	return slices.IndexFunc(lines, func(l line) bool { return l.productID == productID })
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// money renders a decimal as a JSON number with two places.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
