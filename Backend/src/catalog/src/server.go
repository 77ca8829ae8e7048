package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

type CatalogServer struct {
	repo   *Repository
	events Events
}

func NewCatalogServer(repo *Repository, events Events) *CatalogServer {
	return &CatalogServer{repo: repo, events: events}
}

func (s *CatalogServer) Routes(origins []string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/products", s.listProducts).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}", s.getProduct).Methods(http.MethodGet)
	r.HandleFunc("/stock", s.listStock).Methods(http.MethodGet)
	r.HandleFunc("/stock/{id}", s.getStock).Methods(http.MethodGet)
	r.HandleFunc("/stock/{id}", s.setStock).Methods(http.MethodPut)

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut},
	})
	return c.Handler(r)
}

func (s *CatalogServer) listProducts(w http.ResponseWriter, r *http.Request) {
	items, err := s.repo.ListProducts(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *CatalogServer) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := s.repo.GetProduct(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *CatalogServer) listStock(w http.ResponseWriter, r *http.Request) {
	items, err := s.repo.ListStock(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *CatalogServer) getStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	st, err := s.repo.GetStock(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *CatalogServer) setStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in stockUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Amount == nil || *in.Amount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be >= 0"})
		return
	}
	st, err := s.repo.SetStock(r.Context(), id, *in.Amount)
	if err != nil {
		s.fail(w, err)
		return
	}
	log.Info().Int64("product", id).Int("amount", st.Amount).Msg("stock updated")
	if s.events != nil {
		if err := s.events.Publish(context.WithoutCancel(r.Context()), RKStockUpdated, stockEvent(st)); err != nil {
			log.Warn().Err(err).Msg("publish stock update")
		}
	}
	writeJSON(w, http.StatusOK, st)
}

// fail answers 404 with an empty object for unknown ids, which is what the
// cart expects from the catalog.
func (s *CatalogServer) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	log.Error().Err(err).Msg("catalog query")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusNotFound, struct{}{})
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
