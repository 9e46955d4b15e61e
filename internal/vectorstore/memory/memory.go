// Package memory is an in-process Store used for tests and local
// development without a vector service.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/docqahq/docqa/internal/model"
	"github.com/docqahq/docqa/internal/vectorstore"
)

type Store struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]model.IndexedPoint
	order     []string
}

func NewStore(dimension int) *Store {
	return &Store{
		dimension: dimension,
		points:    make(map[string]model.IndexedPoint),
	}
}

func (s *Store) Init(ctx context.Context) error {
	return nil
}

func (s *Store) Upsert(ctx context.Context, point model.IndexedPoint) error {
	return s.BatchUpsert(ctx, []model.IndexedPoint{point})
}

func (s *Store) BatchUpsert(ctx context.Context, points []model.IndexedPoint) error {
	if err := vectorstore.ValidatePoints(points, s.dimension); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, point := range points {
		if _, exists := s.points[point.ID]; !exists {
			s.order = append(s.order, point.ID)
		}
		s.points[point.ID] = point
	}
	return nil
}

func (s *Store) Search(ctx context.Context, queryVector []float32, tenantID string, topK int, extra vectorstore.Filter) ([]model.SearchHit, error) {
	if err := vectorstore.ValidateQueryVector(queryVector, s.dimension); err != nil {
		return nil, err
	}
	topK = vectorstore.ClampTopK(topK, vectorstore.MaxTopK)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []model.SearchHit
	for _, id := range s.order {
		point := s.points[id]
		if point.TenantID() == "" || point.TenantID() != tenantID {
			continue
		}
		if !matches(point, extra) {
			continue
		}
		hits = append(hits, model.SearchHit{
			Point: stripVector(point),
			Score: cosineSimilarity(queryVector, point.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *Store) DeleteByFilter(ctx context.Context, filter vectorstore.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	remaining := s.order[:0]
	for _, id := range s.order {
		point := s.points[id]
		if matches(point, filter) {
			delete(s.points, id)
			removed++
			continue
		}
		remaining = append(remaining, id)
	}
	s.order = remaining
	return removed, nil
}

func (s *Store) Count(ctx context.Context, tenantID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tenantID == "" {
		return int64(len(s.points)), nil
	}
	var count int64
	for _, point := range s.points {
		if point.TenantID() == tenantID {
			count++
		}
	}
	return count, nil
}

func matches(point model.IndexedPoint, filter vectorstore.Filter) bool {
	for key, want := range filter {
		if point.Payload[key] != want {
			return false
		}
	}
	return true
}

func stripVector(point model.IndexedPoint) model.IndexedPoint {
	point.Vector = nil
	return point
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
