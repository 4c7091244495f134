// Package vector provides the approximate-nearest-neighbor index used by
// semantic search. Product embeddings live in an HNSW graph keyed by the
// product identity key, persisted alongside the catalog database.
package vector

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// Hit is a single nearest-neighbor match.
type Hit struct {
	// Key is the product identity key the vector was indexed under.
	Key string
	// Similarity is cosine similarity in [0, 1], higher is closer.
	Similarity float64
}

// Config controls index construction.
type Config struct {
	// Dimensions is the embedding dimension; all vectors must match.
	Dimensions int
	// M is the HNSW max-connections parameter (default 16).
	M int
	// EfSearch is the HNSW search beam width (default 20).
	EfSearch int
}

// Index is a cosine-similarity HNSW index over product embeddings.
// Deletion is lazy: removed keys are orphaned in the graph and filtered
// out of results, which sidesteps coder/hnsw's delete-last-node bug.
type Index struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config Config

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// indexMetadata is the gob-persisted sidecar for key mappings.
type indexMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  Config
}

// NewIndex creates an empty index.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &Index{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

// Add inserts or replaces vectors for the given identity keys.
func (ix *Index) Add(ctx context.Context, keys []string, vectors [][]float32) error {
	if len(keys) == 0 {
		return nil
	}
	if len(keys) != len(vectors) {
		return fmt.Errorf("keys and vectors length mismatch: %d vs %d", len(keys), len(vectors))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return fmt.Errorf("index is closed")
	}

	for _, v := range vectors {
		if len(v) != ix.config.Dimensions {
			return fmt.Errorf("vector dimension %d, index expects %d", len(v), ix.config.Dimensions)
		}
	}

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Replacing an existing key orphans the old graph node.
		if old, exists := ix.idMap[key]; exists {
			delete(ix.keyMap, old)
			delete(ix.idMap, key)
		}

		internal := ix.nextKey
		ix.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		ix.graph.Add(hnsw.MakeNode(internal, vec))
		ix.idMap[key] = internal
		ix.keyMap[internal] = key
	}

	return nil
}

// NearestNeighbors returns up to limit hits whose cosine similarity to
// query is at least threshold, ordered by descending similarity.
func (ix *Index) NearestNeighbors(ctx context.Context, query []float32, threshold float64, limit int) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != ix.config.Dimensions {
		return nil, fmt.Errorf("query dimension %d, index expects %d", len(query), ix.config.Dimensions)
	}
	if ix.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	// Over-fetch to compensate for orphaned nodes filtered below.
	k := limit * 2
	if k < limit+4 {
		k = limit + 4
	}
	nodes := ix.graph.Search(normalized, k)

	hits := make([]Hit, 0, limit)
	for _, node := range nodes {
		key, exists := ix.keyMap[node.Key]
		if !exists {
			continue
		}
		similarity := 1 - float64(ix.graph.Distance(normalized, node.Value))
		if similarity < threshold {
			continue
		}
		hits = append(hits, Hit{Key: key, Similarity: similarity})
		if len(hits) >= limit {
			break
		}
	}

	return hits, nil
}

// Delete removes keys from the index. Graph nodes are orphaned, not
// removed.
func (ix *Index) Delete(ctx context.Context, keys []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return fmt.Errorf("index is closed")
	}

	for _, key := range keys {
		if internal, exists := ix.idMap[key]; exists {
			delete(ix.keyMap, internal)
			delete(ix.idMap, key)
		}
	}
	return nil
}

// Contains reports whether a key is indexed.
func (ix *Index) Contains(key string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, exists := ix.idMap[key]
	return exists && !ix.closed
}

// Count returns the number of live keys.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return 0
	}
	return len(ix.idMap)
}

// Dimensions returns the configured embedding dimension.
func (ix *Index) Dimensions() int {
	return ix.config.Dimensions
}

// Save persists the graph and key mappings atomically (temp file +
// rename). The mapping sidecar lives at path + ".meta".
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return fmt.Errorf("index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := ix.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return ix.saveMetadata(path + ".meta")
}

func (ix *Index) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	meta := indexMetadata{IDMap: ix.idMap, NextKey: ix.nextKey, Config: ix.config}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores a previously saved index. The receiver's contents are
// replaced.
func (ix *Index) Load(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return fmt.Errorf("index is closed")
	}

	if err := ix.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// coder/hnsw Import requires an io.ByteReader.
	if err := ix.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (ix *Index) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	var meta indexMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	ix.idMap = meta.IDMap
	ix.nextKey = meta.NextKey
	ix.config = meta.Config
	ix.keyMap = make(map[uint64]string, len(meta.IDMap))
	for key, internal := range meta.IDMap {
		ix.keyMap[internal] = key
	}
	return nil
}

// Close releases the graph. Further calls fail.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.graph = nil
	return nil
}

func normalizeInPlace(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
}
