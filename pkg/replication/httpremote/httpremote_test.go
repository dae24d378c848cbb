package httpremote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/acorndb/pkg/record"
)

func TestDeliverSucceeds(t *testing.T) {
	var got deliverEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target := New(Config{BaseURL: srv.URL, Collection: "users"})
	rec := &record.Record{ID: "doc-1", ChangeID: "chg-1", Timestamp: time.Now()}
	require.NoError(t, target.Deliver(rec, "node-a"))
	assert.Equal(t, "doc-1", got.Record.ID)
	assert.Equal(t, "node-a", got.FromPeer)
}

func TestDeliverRetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target := New(Config{BaseURL: srv.URL, Collection: "users", MaxRetries: 5})
	rec := &record.Record{ID: "doc-1", ChangeID: "chg-1", Timestamp: time.Now()}
	require.NoError(t, target.Deliver(rec, "node-a"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestDeliverDoesNotRetryOn4xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	target := New(Config{BaseURL: srv.URL, Collection: "users", MaxRetries: 5})
	rec := &record.Record{ID: "doc-1", ChangeID: "chg-1", Timestamp: time.Now()}
	err := target.Deliver(rec, "node-a")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestExportSincePassesQueryParam(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("since")
		json.NewEncoder(w).Encode([]*record.Record{{ID: "doc-1"}})
	}))
	defer srv.Close()

	target := New(Config{BaseURL: srv.URL, Collection: "users"})
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recs, err := target.ExportSince(since)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, since.Format(time.RFC3339Nano), gotQuery)
}

func TestDeliverDeleteSucceeds(t *testing.T) {
	var got deleteEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target := New(Config{BaseURL: srv.URL, Collection: "users"})
	require.NoError(t, target.DeliverDelete("doc-1", "chg-1", "node-a", 0, "node-b"))
	assert.Equal(t, "doc-1", got.ID)
	assert.Equal(t, "node-b", got.FromPeer)
}
