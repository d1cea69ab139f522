package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTables(t *testing.T) {
	tables, err := extractTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"facilities", "beds", "bed_reservations"}, tables)
}

func TestHTTPCaseClassifiesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/pending":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	r := NewRunner(Config{BaseURL: srv.URL})
	ctx := context.Background()

	assert.Equal(t, "PASS", httpCaseMethod("", http.MethodGet, srv.URL+"/ok", nil, []int{200}, []int{404}).Run(ctx, r).Status)
	assert.Equal(t, "PENDING", httpCaseMethod("", http.MethodGet, srv.URL+"/pending", nil, []int{200}, []int{404}).Run(ctx, r).Status)
	assert.Equal(t, "FAIL", httpCaseMethod("", http.MethodGet, srv.URL+"/boom", nil, []int{200}, []int{404}).Run(ctx, r).Status)
}

func TestConcurrentMatchDetectsSharedBed(t *testing.T) {
	var n int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		bed := "b1"
		if atomic.AddInt64(&n, 1)%2 == 0 {
			bed = "b2"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"bed_id": bed})
	}))
	defer srv.Close()

	r := NewRunner(Config{BaseURL: srv.URL, Concurrency: 4, Duration: time.Second})
	res := concurrentMatch(context.Background(), r, srv.URL)
	assert.Equal(t, "FAIL", res.Status)
}

func TestConcurrentMatchUniqueBeds(t *testing.T) {
	var n int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		i := atomic.AddInt64(&n, 1)
		if i > 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"bed_id": "b" + string(rune('0'+i))})
	}))
	defer srv.Close()

	r := NewRunner(Config{BaseURL: srv.URL, Concurrency: 5})
	res := concurrentMatch(context.Background(), r, srv.URL)
	assert.Equal(t, "PASS", res.Status, res.Note)
}
