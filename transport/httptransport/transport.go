// Package httptransport implements transport.Transport as a synchronous
// HTTP client: POST /invoke, GET /health. No third-party HTTP client
// library stood out as worth adopting here over the standard library's
// net/http — see DESIGN.md.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
	"github.com/conceptrt/conceptrt/transport"
)

// Transport is a synchronous HTTP transport for one concept base URL.
type Transport struct {
	BaseURL string
	Client  *http.Client
}

// New returns an HTTP transport for baseURL (e.g. "http://localhost:9001").
func New(baseURL string) *Transport {
	return &Transport{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: transport.DefaultTimeout},
	}
}

func (t *Transport) Invoke(ctx context.Context, inv model.ActionInvocation) (model.ActionCompletion, error) {
	body, err := json.Marshal(inv)
	if err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not encode invocation")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return model.ActionCompletion{
			ID: inv.ID, Concept: inv.Concept, Action: inv.Action, Input: inv.Input,
			Flow: inv.Flow, Variant: model.VariantError,
			Output:    model.Fields{"message": err.Error()},
			Timestamp: time.Now(),
		}, nil
	}
	defer resp.Body.Close()

	var c model.ActionCompletion
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not decode completion")
	}
	return c, nil
}

func (t *Transport) Query(ctx context.Context, relation string, filter storage.Filter) ([]model.Fields, error) {
	q := url.Values{}
	q.Set("relation", relation)
	if len(filter) > 0 {
		raw, err := json.Marshal(filter)
		if err != nil {
			return nil, errors.Wrap(err, "could not encode filter")
		}
		q.Set("filter", string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+"/query?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not query concept")
	}
	defer resp.Body.Close()

	var rows []model.Fields
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, errors.Wrap(err, "could not decode query response")
	}
	return rows, nil
}

func (t *Transport) Health(ctx context.Context) (transport.Health, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+"/health", nil)
	if err != nil {
		return transport.Health{Available: false}, nil
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return transport.Health{Available: false}, nil
	}
	defer resp.Body.Close()
	return transport.Health{
		Available: resp.StatusCode == http.StatusOK,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}
