package fakecart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/gorilla/mux"

	"github.com/roach88/cartsync/internal/cart"
)

type sessionKey struct{}

type mutationBody struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type wireRow struct {
	ProductID int64       `json:"product_id"`
	Title     string      `json:"product_title"`
	Price     json.Number `json:"product_price"`
	Image     string      `json:"product_image"`
	Quantity  int         `json:"quantity"`
}

var msgQuantityRange = fmt.Sprintf("Quantity must be between %d and %d", cart.MinQuantity, cart.MaxQuantity)

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}

// injectFailures answers with a queued failure status, if any.
func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := 0
		if len(s.failures) > 0 {
			status = s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if status == 0 {
			next.ServeHTTP(w, r)
			return
		}

		s.record(Request{Op: routeName(r), Status: status})
		s.log.Debug("fakecart: injected failure", "op", routeName(r), "status", status)
		writeJSON(w, status, map[string]any{
			"success": false,
			"message": http.StatusText(status),
		})
	})
}

// requireSession rejects requests without a known session cookie.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var session string
		if ck, err := r.Cookie(s.cookie); err == nil {
			session = ck.Value
		}

		s.mu.Lock()
		_, ok := s.sessions[session]
		s.mu.Unlock()

		if !ok {
			s.record(Request{Op: routeName(r), Session: session, Status: http.StatusUnauthorized})
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"message": "Please log in to continue",
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func sessionFrom(r *http.Request) string {
	session, _ := r.Context().Value(sessionKey{}).(string)
	return session
}

func (s *Server) record(req Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
}

// reply writes body and logs the request. Caller must not hold mu.
func (s *Server) reply(w http.ResponseWriter, req Request, status int, body any) {
	req.Status = status
	s.record(req)
	writeJSON(w, status, body)
}

func rejection(msg string) map[string]any {
	return map[string]any{"success": false, "message": msg}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)

	s.mu.Lock()
	items, totals := s.view(s.sessions[session])
	s.mu.Unlock()

	rows := make([]wireRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, wireRow{
			ProductID: it.ProductID,
			Title:     it.Title,
			Price:     money(it.UnitPrice),
			Image:     it.ImageRef,
			Quantity:  it.Quantity,
		})
	}

	s.reply(w, Request{Op: OpGet, Session: session}, http.StatusOK, map[string]any{
		"cart_items": rows,
		"total":      money(totals.Total),
		"count":      totals.Count,
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	req := Request{Op: OpAdd, Session: session}

	var body mutationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.reply(w, req, http.StatusBadRequest, rejection("Invalid request"))
		return
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}
	req.ProductID, req.Quantity = body.ProductID, body.Quantity

	if body.Quantity < cart.MinQuantity || body.Quantity > cart.MaxQuantity {
		s.reply(w, req, http.StatusBadRequest, rejection(msgQuantityRange))
		return
	}

	s.mu.Lock()
	p, ok := s.catalog[body.ProductID]
	if !ok {
		s.mu.Unlock()
		s.reply(w, req, http.StatusNotFound, rejection("Product not found"))
		return
	}
	lines := s.sessions[session]
	i := findLine(lines, body.ProductID)
	if i >= 0 && lines[i].quantity+body.Quantity > cart.MaxQuantity {
		s.mu.Unlock()
		s.reply(w, req, http.StatusOK, rejection(fmt.Sprintf("You can have at most %d of %s", cart.MaxQuantity, p.Title)))
		return
	}
	if i >= 0 {
		lines[i].quantity += body.Quantity
	} else {
		lines = append(lines, line{productID: body.ProductID, quantity: body.Quantity})
	}
	s.sessions[session] = lines
	_, totals := s.view(lines)
	s.mu.Unlock()

	s.reply(w, req, http.StatusOK, map[string]any{
		"success":    true,
		"message":    fmt.Sprintf("%s added to cart", p.Title),
		"cart_count": totals.Count,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	req := Request{Op: OpUpdate, Session: session}

	var body mutationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.reply(w, req, http.StatusBadRequest, rejection("Invalid request"))
		return
	}
	req.ProductID, req.Quantity = body.ProductID, body.Quantity

	if body.Quantity < cart.MinQuantity || body.Quantity > cart.MaxQuantity {
		s.reply(w, req, http.StatusBadRequest, rejection(msgQuantityRange))
		return
	}

	s.mu.Lock()
	lines := s.sessions[session]
	i := findLine(lines, body.ProductID)
	if i < 0 {
		s.mu.Unlock()
		s.reply(w, req, http.StatusNotFound, rejection("Item not in cart"))
		return
	}
	lines[i].quantity = body.Quantity
	_, totals := s.view(lines)
	s.mu.Unlock()

	s.reply(w, req, http.StatusOK, map[string]any{
		"success": true,
		"message": "Cart updated",
		"total":   money(totals.Total),
		"count":   totals.Count,
	})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	req := Request{Op: OpRemove, Session: session}

	var body mutationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.reply(w, req, http.StatusBadRequest, rejection("Invalid request"))
		return
	}
	req.ProductID = body.ProductID

	s.mu.Lock()
	lines := s.sessions[session]
	i := findLine(lines, body.ProductID)
	if i < 0 {
		s.mu.Unlock()
		s.reply(w, req, http.StatusNotFound, rejection("Item not in cart"))
		return
	}
	lines = slices.Delete(lines, i, i+1)
	s.sessions[session] = lines
	_, totals := s.view(lines)
	s.mu.Unlock()

	s.reply(w, req, http.StatusOK, map[string]any{
		"success": true,
		"message": "Item removed from cart",
		"total":   money(totals.Total),
		"count":   totals.Count,
	})
}
