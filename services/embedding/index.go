// Package embedding turns text into fixed-length vectors and performs
// similarity search. It is a pure numerical utility: no tenancy, no TTL.
package embedding

import (
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"
)

// Embedder converts text to a fixed-length vector. A production
// implementation calls an external embedding model; the local embedder
// below keeps the pipeline deterministic and dependency-free in-process.
type Embedder interface {
	Embed(text string) []float64
}

const (
	// DefaultDimensions is the vector length of the local embedder
	DefaultDimensions = 256

	// DefaultCacheSize bounds the embedding result cache
	DefaultCacheSize = 5000
)

// Index computes and caches embeddings and answers similarity queries.
type Index struct {
	embedder Embedder

	mu       sync.Mutex
	cache    map[string]*cachedVector
	maxCache int
}

type cachedVector struct {
	vector     []float64
	accessedAt time.Time
}

// NewIndex creates an Index backed by the given embedder. A nil embedder
// falls back to the deterministic local one.
func NewIndex(embedder Embedder, maxCache int) *Index {
	if embedder == nil {
		embedder = NewLocalEmbedder(DefaultDimensions)
	}
	if maxCache <= 0 {
		maxCache = DefaultCacheSize
	}
	return &Index{
		embedder: embedder,
		cache:    make(map[string]*cachedVector),
		maxCache: maxCache,
	}
}

// Embed returns the vector for text, deterministic for identical text
// within the process lifetime. Results are cached up to the configured
// bound; the oldest-accessed entry is evicted when the bound is hit.
func (i *Index) Embed(text string) []float64 {
	i.mu.Lock()
	if cached, ok := i.cache[text]; ok {
		cached.accessedAt = time.Now()
		vec := cached.vector
		i.mu.Unlock()
		return vec
	}
	i.mu.Unlock()

	vec := i.embedder.Embed(text)

	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.cache) >= i.maxCache {
		i.evictOldest()
	}
	i.cache[text] = &cachedVector{vector: vec, accessedAt: time.Now()}
	return vec
}

// evictOldest removes the least recently accessed cached vector.
// O(n) scan; acceptable at the configured bound. Must hold i.mu.
func (i *Index) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, cached := range i.cache {
		if first || cached.accessedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = cached.accessedAt
			first = false
		}
	}
	if !first {
		delete(i.cache, oldestKey)
	}
}

// CacheSize returns the number of cached embedding results.
func (i *Index) CacheSize() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.cache)
}

// Candidate pairs an opaque id with its embedding for nearest search.
type Candidate struct {
	ID     string
	Vector []float64
}

// Match is the result of a nearest-neighbour query.
type Match struct {
	ID         string
	Similarity float64
}

// NearestAbove returns the candidate most similar to vector with
// similarity at or above threshold, or nil when none qualifies.
// Ties keep the first candidate in list order.
func (i *Index) NearestAbove(vector []float64, candidates []Candidate, threshold float64) *Match {
	var best *Match
	for _, c := range candidates {
		sim := CosineSimilarity(vector, c.Vector)
		if sim < threshold {
			continue
		}
		if best == nil || sim > best.Similarity {
			best = &Match{ID: c.ID, Similarity: sim}
		}
	}
	return best
}

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1, 1]. Mismatched or zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for idx := range a {
		dot += a[idx] * b[idx]
		normA += a[idx] * a[idx]
		normB += b[idx] * b[idx]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// LocalEmbedder is a deterministic in-process embedder. It hashes word
// and bigram features into a fixed-length unit vector, which gives
// identical text similarity 1.0 and lexically close text high similarity.
type LocalEmbedder struct {
	dimensions int
}

// NewLocalEmbedder creates a LocalEmbedder with the given vector length.
func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &LocalEmbedder{dimensions: dimensions}
}

// Embed implements Embedder.
func (e *LocalEmbedder) Embed(text string) []float64 {
	vec := make([]float64, e.dimensions)
	words := strings.Fields(strings.ToLower(text))
	for idx, word := range words {
		e.addFeature(vec, word, 1.0)
		if idx+1 < len(words) {
			e.addFeature(vec, word+" "+words[idx+1], 0.5)
		}
	}
	normalize(vec)
	return vec
}

func (e *LocalEmbedder) addFeature(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dimensions))
	// Second hash bit picks the sign to spread features around zero
	sign := 1.0
	if (sum>>63)&1 == 1 {
		sign = -1.0
	}
	vec[bucket] += sign * weight
}

func normalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for idx := range vec {
		vec[idx] /= norm
	}
}
