package search

import (
	"fmt"
	"sync"

	"github.com/coder/hnsw"
)

// VectorScorer is an optional embedding plug-in point: nothing requires it,
// and the engine leaves it disabled by default, but a caller that supplies
// precomputed embedding vectors can rank by approximate nearest neighbor
// instead of keyword overlap. Scores stay deterministic and in [0,1], same
// as the keyword scorer, so callers can combine both without special
// casing. Callers supply vectors directly; this package never computes
// embeddings.
type VectorScorer struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int
	idMap      map[string]uint64
	keyMap     map[uint64]string
	nextKey    uint64
}

// NewVectorScorer builds a VectorScorer for vectors of the given
// dimensionality, disabled (nil) by default in the engine.
func NewVectorScorer(dimensions int) *VectorScorer {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	return &VectorScorer{
		graph:      graph,
		dimensions: dimensions,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
	}
}

// Index inserts or replaces the vector for path.
func (v *VectorScorer) Index(path string, vector []float32) error {
	if len(vector) != v.dimensions {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", v.dimensions, len(vector))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if existingKey, ok := v.idMap[path]; ok {
		delete(v.keyMap, existingKey)
		delete(v.idMap, path)
	}
	key := v.nextKey
	v.nextKey++

	v.graph.Add(hnsw.MakeNode(key, vector))
	v.idMap[path] = key
	v.keyMap[key] = path
	return nil
}

// Score returns the top-k paths by cosine similarity to query, clamped to
// [0,1].
func (v *VectorScorer) Score(query []float32, k int) ([]Hit, error) {
	if len(query) != v.dimensions {
		return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", v.dimensions, len(query))
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.graph.Len() == 0 {
		return nil, nil
	}

	nodes := v.graph.Search(query, k)
	hits := make([]Hit, 0, len(nodes))
	for _, node := range nodes {
		path, ok := v.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := v.graph.Distance(query, node.Value)
		score := 1 - distance/2
		if score > 1 {
			score = 1
		}
		if score < 0 {
			score = 0
		}
		hits = append(hits, Hit{Path: path, Score: score})
	}
	return hits, nil
}
