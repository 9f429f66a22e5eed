// Package ann implements the HNSW (Hierarchical Navigable Small World)
// approximate-nearest-neighbor graph used to index chunk embeddings.
// Construction (Build) runs in memory; the resulting Graph is
// persisted to a self-describing binary layout (format.go) that a
// Reader memory-maps for zero-copy search.
package ann

import (
	"math"
	"math/rand"
	"sort"

	"github.com/maurocanuto/mempack/bitset"
	"github.com/maurocanuto/mempack/errors"
)

// Metric identifies the distance function. Cosine is the only metric
// and operates on L2-normalized vectors, so cosine distance reduces to
// 1 - dot product.
type Metric uint8

const (
	Cosine Metric = 1
)

// Params configures graph construction.
type Params struct {
	M              int // max neighbors per node per layer (except layer 0, which allows 2*M)
	EfConstruction int
	Seed           uint64
}

// DefaultParams returns the spec's default HNSW parameters.
func DefaultParams() Params {
	return Params{M: 32, EfConstruction: 200, Seed: 1}
}

func (p Params) mMax0() int { return 2 * p.M }

// Graph is a constructed, in-memory HNSW index over N vectors of
// dimension D.
type Graph struct {
	Dim            int
	M              int
	EfConstruction int
	Seed           uint64
	EntryPoint     uint32
	MaxLevel       int
	Metric         Metric

	vectors   [][]float32 // normalized, indexed by vector_id
	nodeLevel []int       // per-node top layer
	neighbors [][][]uint32 // neighbors[level][nodeID] -> neighbor ids
}

// Build constructs a deterministic HNSW graph over vectors (already
// L2-normalized). Construction is single-threaded and, given the same
// vectors, params, and seed, produces a byte-identical graph every
// time (spec.md §4.5, §8 determinism).
func Build(vectors [][]float32, p Params) (*Graph, error) {
	if len(vectors) == 0 {
		return nil, errors.E(errors.InvalidConfig, "ann: no vectors to index")
	}
	dim := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dim {
			return nil, errors.E(errors.DimensionMismatch, "ann: inconsistent vector dimension")
		}
	}
	g := &Graph{
		Dim:            dim,
		M:              p.M,
		EfConstruction: p.EfConstruction,
		Seed:           p.Seed,
		Metric:         Cosine,
		vectors:        vectors,
	}

	rng := rand.New(rand.NewSource(int64(p.Seed)))
	mL := 1.0 / math.Log(float64(p.M))
	g.nodeLevel = make([]int, len(vectors))
	for i := range vectors {
		g.nodeLevel[i] = randomLevel(rng, mL)
	}

	g.MaxLevel = 0
	for _, l := range g.nodeLevel {
		if l > g.MaxLevel {
			g.MaxLevel = l
		}
	}
	g.neighbors = make([][][]uint32, g.MaxLevel+1)
	for l := range g.neighbors {
		g.neighbors[l] = make([][]uint32, len(vectors))
	}

	g.EntryPoint = 0
	curMax := g.nodeLevel[0]
	for id := 1; id < len(vectors); id++ {
		level := g.nodeLevel[id]
		ep := g.EntryPoint
		for lc := curMax; lc > level; lc-- {
			ep = g.greedyClosest(uint32(id), ep, lc)
		}
		for lc := min(level, curMax); lc >= 0; lc-- {
			candidates := g.searchLayer(uint32(id), []uint32{ep}, p.EfConstruction, lc)
			mMax := p.M
			if lc == 0 {
				mMax = p.mMax0()
			}
			selected := g.closestM(uint32(id), candidates, mMax)
			g.neighbors[lc][id] = selected
			for _, n := range selected {
				g.addNeighbor(lc, n, uint32(id), mMax)
			}
			if len(candidates) > 0 {
				ep = candidates[0]
			}
		}
		if level > curMax {
			g.EntryPoint = uint32(id)
			curMax = level
		}
	}
	return g, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func randomLevel(rng *rand.Rand, mL float64) int {
	r := rng.Float64()
	if r < 1e-12 {
		r = 1e-12
	}
	return int(math.Floor(-math.Log(r) * mL))
}

func (g *Graph) addNeighbor(level int, node, candidate uint32, mMax int) {
	lst := g.neighbors[level][node]
	for _, n := range lst {
		if n == candidate {
			return
		}
	}
	lst = append(lst, candidate)
	if len(lst) > mMax {
		lst = g.closestM(node, lst, mMax)
	}
	g.neighbors[level][node] = lst
}

// greedyClosest returns the single closest neighbor to query found by
// a depth-0 greedy walk from ep at level lc.
func (g *Graph) greedyClosest(query uint32, ep uint32, lc int) uint32 {
	best := ep
	bestDist := g.distance(g.vectors[query], g.vectors[ep])
	improved := true
	for improved {
		improved = false
		for _, n := range g.neighbors[lc][best] {
			d := g.distance(g.vectors[query], g.vectors[n])
			if d < bestDist {
				bestDist = d
				best = n
				improved = true
			}
		}
	}
	return best
}

// searchLayer performs a best-first search at level lc starting from
// entryPoints, returning up to ef candidate node ids sorted by
// ascending distance to query's vector.
func (g *Graph) searchLayer(query uint32, entryPoints []uint32, ef int, lc int) []uint32 {
	return g.searchLayerVec(g.vectors[query], entryPoints, ef, lc)
}

func (g *Graph) searchLayerVec(queryVec []float32, entryPoints []uint32, ef int, lc int) []uint32 {
	visited := make([]uintptr, (len(g.vectors)+bitset.BitsPerWord-1)/bitset.BitsPerWord)
	type cand struct {
		id   uint32
		dist float32
	}
	var candidates []cand
	var results []cand
	for _, ep := range entryPoints {
		if bitset.Test(visited, int(ep)) {
			continue
		}
		bitset.Set(visited, int(ep))
		d := g.distance(queryVec, g.vectors[ep])
		candidates = append(candidates, cand{ep, d})
		results = append(results, cand{ep, d})
	}
	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
		c := candidates[0]
		candidates = candidates[1:]

		sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
		if len(results) >= ef && c.dist > results[len(results)-1].dist {
			break
		}
		for _, n := range g.neighbors[lc][c.id] {
			if bitset.Test(visited, int(n)) {
				continue
			}
			bitset.Set(visited, int(n))
			d := g.distance(queryVec, g.vectors[n])
			if len(results) < ef || d < results[len(results)-1].dist {
				candidates = append(candidates, cand{n, d})
				results = append(results, cand{n, d})
			}
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].dist != results[j].dist {
			return results[i].dist < results[j].dist
		}
		return results[i].id < results[j].id
	})
	if len(results) > ef {
		results = results[:ef]
	}
	out := make([]uint32, len(results))
	for i, r := range results {
		out[i] = r.id
	}
	return out
}

// closestM picks the mMax candidates closest to node's vector, sorted
// by ascending distance then ascending id for determinism.
func (g *Graph) closestM(node uint32, candidates []uint32, mMax int) []uint32 {
	type cand struct {
		id   uint32
		dist float32
	}
	vec := g.vectors[node]
	scored := make([]cand, len(candidates))
	for i, c := range candidates {
		scored[i] = cand{c, g.distance(vec, g.vectors[c])}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].dist != scored[j].dist {
			return scored[i].dist < scored[j].dist
		}
		return scored[i].id < scored[j].id
	})
	if len(scored) > mMax {
		scored = scored[:mMax]
	}
	out := make([]uint32, len(scored))
	for i, c := range scored {
		out[i] = c.id
	}
	return out
}

// distance returns 1 - cosine_similarity for normalized a, b, per
// spec.md §4.5.
func (g *Graph) distance(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return 1 - dot
}

// Search returns up to topK (vector_id, distance) pairs closest to
// query (expected pre-normalized), using efSearch candidates.
func (g *Graph) Search(query []float32, topK, efSearch int) ([]Result, error) {
	if len(query) != g.Dim {
		return nil, errors.E(errors.DimensionMismatch, "ann: query dimension mismatch")
	}
	if topK <= 0 {
		return nil, nil
	}
	ep := g.EntryPoint
	for lc := g.MaxLevel; lc > 0; lc-- {
		ep = g.greedyClosestVec(query, ep, lc)
	}
	candidates := g.searchLayerVec(query, []uint32{ep}, efSearch, 0)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]Result, len(candidates))
	for i, id := range candidates {
		out[i] = Result{VectorID: id, Distance: g.distance(query, g.vectors[id])}
	}
	return out, nil
}

func (g *Graph) greedyClosestVec(query []float32, ep uint32, lc int) uint32 {
	best := ep
	bestDist := g.distance(query, g.vectors[ep])
	improved := true
	for improved {
		improved = false
		for _, n := range g.neighbors[lc][best] {
			d := g.distance(query, g.vectors[n])
			if d < bestDist {
				bestDist = d
				best = n
				improved = true
			}
		}
	}
	return best
}

// Result is one search hit.
type Result struct {
	VectorID uint32
	Distance float32
}

// Normalize returns a copy of v scaled to unit L2 norm. A zero vector
// is returned unchanged.
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return append([]float32(nil), v...)
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
