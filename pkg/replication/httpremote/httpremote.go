// Package httpremote implements a replication.Target over JSON-over-HTTP,
// for peers that live outside this process. Delivery retries transient
// failures with an exponential backoff before giving up and letting the
// owning Fabric count it as a push failure.
package httpremote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cuemby/acorndb/pkg/record"
)

// Config configures a remote Target.
type Config struct {
	// BaseURL is the peer's root endpoint, e.g. "https://node-b.internal:8080".
	BaseURL string
	// Collection scopes the remote endpoints, e.g. "/collections/<name>/...".
	Collection string
	Client     *http.Client
	MaxRetries uint64
	Timeout    time.Duration
}

// Target talks to a remote AcornDB node's replication HTTP surface.
type Target struct {
	baseURL    string
	collection string
	client     *http.Client
	maxRetries uint64
	timeout    time.Duration
}

// New builds a remote Target from cfg, filling in defaults for an
// unset HTTP client, retry count, and per-attempt timeout.
func New(cfg Config) *Target {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Target{
		baseURL:    cfg.BaseURL,
		collection: cfg.Collection,
		client:     client,
		maxRetries: maxRetries,
		timeout:    timeout,
	}
}

type deliverEnvelope struct {
	Record   *record.Record `json:"record"`
	FromPeer string         `json:"from_peer"`
}

type deleteEnvelope struct {
	ID           string `json:"id"`
	ChangeID     string `json:"change_id"`
	OriginNodeID string `json:"origin_node_id"`
	HopCount     int    `json:"hop_count"`
	FromPeer     string `json:"from_peer"`
}

// Deliver posts rec to the remote peer's replication-receive endpoint,
// retrying transient failures with exponential backoff.
func (t *Target) Deliver(rec *record.Record, fromPeer string) error {
	body, err := json.Marshal(deliverEnvelope{Record: rec, FromPeer: fromPeer})
	if err != nil {
		return fmt.Errorf("httpremote: marshal record: %w", err)
	}
	return t.postWithRetry(t.endpoint("receive"), body)
}

// DeliverDelete posts a delete mutation to the remote peer.
func (t *Target) DeliverDelete(id, changeID, originNodeID string, hopCount int, fromPeer string) error {
	body, err := json.Marshal(deleteEnvelope{
		ID: id, ChangeID: changeID, OriginNodeID: originNodeID, HopCount: hopCount, FromPeer: fromPeer,
	})
	if err != nil {
		return fmt.Errorf("httpremote: marshal delete: %w", err)
	}
	return t.postWithRetry(t.endpoint("receive-delete"), body)
}

func (t *Target) postWithRetry(endpoint string, body []byte) error {
	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("httpremote: build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("httpremote: do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("httpremote: remote returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("httpremote: remote returned %d", resp.StatusCode))
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), t.maxRetries)
	return backoff.Retry(op, policy)
}

// Push sends a single record to the remote peer, the abstract push
// operation of a two-call remote. The id travels inside the record.
func (t *Target) Push(_ string, rec *record.Record) error {
	return t.Deliver(rec, "")
}

// FetchAll pulls the remote peer's full record set, the abstract fetch
// operation a Shake-driven merge consumes.
func (t *Target) FetchAll() ([]*record.Record, error) {
	return t.ExportAll()
}

// ExportSince fetches every record the remote peer has created or modified
// since t, for delta sync.
func (t *Target) ExportSince(since time.Time) ([]*record.Record, error) {
	u := t.endpoint("export") + "?since=" + url.QueryEscape(since.Format(time.RFC3339Nano))
	return t.fetchRecords(u)
}

// ExportAll fetches the remote peer's full record set, for initial sync.
func (t *Target) ExportAll() ([]*record.Record, error) {
	return t.fetchRecords(t.endpoint("export"))
}

func (t *Target) fetchRecords(endpoint string) ([]*record.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("httpremote: build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpremote: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpremote: remote returned %d", resp.StatusCode)
	}

	var recs []*record.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("httpremote: decode response: %w", err)
	}
	return recs, nil
}

func (t *Target) endpoint(action string) string {
	return fmt.Sprintf("%s/collections/%s/replication/%s", t.baseURL, t.collection, action)
}
