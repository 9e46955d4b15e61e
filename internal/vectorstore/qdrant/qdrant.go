// Package qdrant is a minimal REST client for a Qdrant collection. It
// assumes cosine distance and creates the collection if missing.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/docqahq/docqa/internal/model"
	appErr "github.com/docqahq/docqa/internal/pkg/errors"
	"github.com/docqahq/docqa/internal/vectorstore"
)

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

type Store struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Store{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Store) Init(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant answers 200 when the collection already exists with the
	// same schema; a schema conflict propagates as an error.
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

func (s *Store) Upsert(ctx context.Context, point model.IndexedPoint) error {
	return s.BatchUpsert(ctx, []model.IndexedPoint{point})
}

func (s *Store) BatchUpsert(ctx context.Context, points []model.IndexedPoint) error {
	if err := vectorstore.ValidatePoints(points, s.dimension); err != nil {
		return err
	}
	body := map[string]any{"points": encodePoints(points)}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection)
	return s.putJSON(ctx, url, body, nil)
}

func (s *Store) Search(ctx context.Context, queryVector []float32, tenantID string, topK int, extra vectorstore.Filter) ([]model.SearchHit, error) {
	if err := vectorstore.ValidateQueryVector(queryVector, s.dimension); err != nil {
		return nil, err
	}
	topK = vectorstore.ClampTopK(topK, vectorstore.MaxTopK)
	req := map[string]any{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
		"filter":       encodeFilter(tenantID, extra),
	}
	var resp struct {
		Result []struct {
			ID      any                    `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.postJSON(ctx, url, req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrSearchFailed, err)
	}
	hits := make([]model.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, model.SearchHit{
			Point: model.IndexedPoint{
				ID:      fmt.Sprintf("%v", r.ID),
				Payload: r.Payload,
			},
			Score: r.Score,
		})
	}
	return hits, nil
}

func (s *Store) DeleteByFilter(ctx context.Context, filter vectorstore.Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("%w: delete filter must not be empty", appErr.ErrInvalid)
	}
	// The delete endpoint reports an operation status, not how many
	// points it removed, so the count comes from a query just before
	// the delete. Concurrent writers can make it approximate.
	before, err := s.count(ctx, encodeConditions(filter))
	if err != nil {
		return 0, err
	}
	body := map[string]any{
		"filter": map[string]any{"must": encodeConditions(filter)},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection)
	if err := s.postJSON(ctx, url, body, nil); err != nil {
		return 0, err
	}
	// Deleting nothing is success with a zero count.
	return before, nil
}

func (s *Store) Count(ctx context.Context, tenantID string) (int64, error) {
	var conds []map[string]any
	if tenantID != "" {
		conds = encodeConditions(vectorstore.Filter{model.PayloadTenantID: tenantID})
	}
	return s.count(ctx, conds)
}

func (s *Store) count(ctx context.Context, conds []map[string]any) (int64, error) {
	req := map[string]any{"exact": true}
	if len(conds) > 0 {
		req["filter"] = map[string]any{"must": conds}
	}
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection)
	if err := s.postJSON(ctx, url, req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func encodePoints(points []model.IndexedPoint) []map[string]any {
	out := make([]map[string]any, 0, len(points))
	for _, p := range points {
		out = append(out, map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		})
	}
	return out
}

// encodeFilter builds the search filter with the tenant condition as a
// mandatory conjunct. Caller filters can narrow the result set but can
// never widen it across tenants.
func encodeFilter(tenantID string, extra vectorstore.Filter) map[string]any {
	conds := []map[string]any{
		{"key": model.PayloadTenantID, "match": map[string]any{"value": tenantID}},
	}
	conds = append(conds, encodeConditions(extra)...)
	return map[string]any{"must": conds}
}

func encodeConditions(filter vectorstore.Filter) []map[string]any {
	conds := make([]map[string]any, 0, len(filter))
	for key, value := range filter {
		conds = append(conds, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	return conds
}

func (s *Store) putJSON(ctx context.Context, url string, body any, out any) error {
	return s.doJSON(ctx, http.MethodPut, url, body, out)
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any) error {
	return s.doJSON(ctx, http.MethodPost, url, body, out)
}

func (s *Store) doJSON(ctx context.Context, method, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
