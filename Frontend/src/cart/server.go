// HTTP surface the storefront UI uses to read and change the cart
package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/rocketshoes/Frontend/src/cart/cartstate"
	"github.com/ahinestrog/rocketshoes/Frontend/src/cart/notify"
)

type Server struct {
	cart  *cartstate.Manager
	flash *notify.Flash
}

func NewServer(cart *cartstate.Manager, flash *notify.Flash) *Server {
	return &Server{cart: cart, flash: flash}
}

type cartResponse struct {
	Items   cartstate.Cart `json:"items"`
	Reason  string         `json:"reason,omitempty"`
	Message string         `json:"message,omitempty"`
}

type updateAmountRequest struct {
	Amount *int `json:"amount"`
}

func (s *Server) Routes(origins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogger)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(http.MethodGet)
	r.HandleFunc("/cart", s.handleCart).Methods(http.MethodGet)
	r.HandleFunc("/cart/items/{id}", s.handleAdd).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id}", s.handleRemove).Methods(http.MethodDelete)
	r.HandleFunc("/cart/items/{id}", s.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	})
	return c.Handler(r)
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cartResponse{Items: s.cart.Cart()})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.cart.Add(r.Context(), id))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.cart.Remove(r.Context(), id))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req updateAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"amount\": <int>}"})
		return
	}
	s.writeResult(w, s.cart.UpdateAmount(r.Context(), id, *req.Amount))
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]notify.Message{"notifications": s.flash.Drain()})
}

func (s *Server) writeResult(w http.ResponseWriter, res cartstate.Result) {
	body := cartResponse{Items: res.Cart, Message: res.Message}
	if !res.OK() {
		body.Reason = res.Reason.String()
	}
	writeJSON(w, statusFor(res.Reason), body)
}

// statusFor maps a cart outcome to an HTTP status. The silent no-op for a
// non-positive amount is still a 200.
func statusFor(reason cartstate.Reason) int {
	switch reason {
	case cartstate.ReasonNone, cartstate.ReasonInvalidAmount:
		return http.StatusOK
	case cartstate.ReasonOutOfStock:
		return http.StatusConflict
	case cartstate.ReasonNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// requestLogger tags each request with an X-Request-ID and logs it.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		l := log.With().Str("request_id", id).Logger()
		r = r.WithContext(l.WithContext(r.Context()))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}
