package catalogclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newCatalogServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products/1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"title":"Tênis de Caminhada Leve Confortável","price":179.9,"image":"https://example.test/1.jpg"}`))
	})
	mux.HandleFunc("/stock/1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		_, _ = w.Write([]byte(`{"id":1,"amount":3}`))
	})
	mux.HandleFunc("/stock/2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/stock/3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStockAndProduct(t *testing.T) {
	var hits int32
	srv := newCatalogServer(t, &hits)
	c, err := New(srv.URL + "/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	s, err := c.Stock(ctx, 1)
	if err != nil {
		t.Fatalf("Stock: %v", err)
	}
	if s.ID != 1 || s.Amount != 3 {
		t.Fatalf("Stock = %+v", s)
	}

	p, err := c.Product(ctx, 1)
	if err != nil {
		t.Fatalf("Product: %v", err)
	}
	if p.ID != 1 || p.Amount != 0 || p.Title() != "Tênis de Caminhada Leve Confortável" || p.Price() != 179.9 {
		t.Fatalf("Product = %+v", p)
	}
	if p.Image() == "" {
		t.Fatal("image attribute lost")
	}
}

func TestErrors(t *testing.T) {
	var hits int32
	srv := newCatalogServer(t, &hits)
	c, _ := New(srv.URL)
	ctx := context.Background()

	t.Run("404 is ErrNotFound", func(t *testing.T) {
		_, err := c.Product(ctx, 99)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("5xx is StatusError", func(t *testing.T) {
		_, err := c.Stock(ctx, 2)
		var se *StatusError
		if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
			t.Fatalf("err = %v, want StatusError 500", err)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		if _, err := c.Stock(ctx, 3); err == nil {
			t.Fatal("expected decode error")
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		dead, _ := New("http://127.0.0.1:1", WithTimeout(200*time.Millisecond))
		if _, err := dead.Stock(ctx, 1); err == nil {
			t.Fatal("expected transport error")
		}
	})

	t.Run("empty base url", func(t *testing.T) {
		if _, err := New("  "); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestProductCacheSkipsStock(t *testing.T) {
	var hits int32
	srv := newCatalogServer(t, &hits)
	c, err := New(srv.URL, WithProductCache(8))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Product(ctx, 1); err != nil {
			t.Fatalf("Product: %v", err)
		}
		if _, err := c.Stock(ctx, 1); err != nil {
			t.Fatalf("Stock: %v", err)
		}
	}
	// one product fetch, three stock fetches
	if got := atomic.LoadInt32(&hits); got != 4 {
		t.Fatalf("server hits = %d, want 4", got)
	}
}
