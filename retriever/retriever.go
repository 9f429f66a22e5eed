// Package retriever implements the query-side join across the ANN
// index, the pack's table of contents, and the block cache: embed the
// query, search the graph, translate vector IDs to chunk IDs, apply an
// optional metadata filter, batch-fetch the owning blocks, and return
// scored hits in ascending-distance order (spec.md §4.7).
package retriever

import (
	"context"
	"sort"

	"github.com/maurocanuto/mempack/ann"
	"github.com/maurocanuto/mempack/cache"
	"github.com/maurocanuto/mempack/compress"
	"github.com/maurocanuto/mempack/embed"
	"github.com/maurocanuto/mempack/errors"
	"github.com/maurocanuto/mempack/meta"
	"github.com/maurocanuto/mempack/pack"
)

// isChunkUnavailable reports whether err is one of the block-level
// failure kinds that spec.md §7 says Search must tolerate by dropping
// the affected chunk_id rather than failing the whole call.
func isChunkUnavailable(err error) bool {
	return errors.Is(errors.ChunkUnavailable, err) ||
		errors.Is(errors.BlockCorrupt, err) ||
		errors.Is(errors.EccUnrecoverable, err)
}

// DefaultEfSearch is the default HNSW search breadth (spec.md §4.7).
const DefaultEfSearch = 64

// Hit is one scored search result.
type Hit struct {
	ChunkID uint64
	Score   float32 // 1 - distance
	Text    string
	Meta    meta.Record
}

// Retriever joins an ANN reader, a pack reader, and a block cache to
// answer nearest-neighbor text queries.
type Retriever struct {
	Pack     *pack.Reader
	Ann      *ann.Reader
	Cache    *cache.Cache
	Backend  embed.Backend
	EfSearch int

	chunkByID map[uint64]pack.ChunkEntry
}

// New builds a Retriever over an already-open pack and ANN reader. The
// cache's loader fetches and decodes blocks from p, applying ECC
// repair via repair if a block's checksum fails (repair may be nil to
// disable repair attempts). ioBatchSize and prefetch configure the
// cache's batched-fetch policy (spec.md §4.6); see cache.New.
func New(p *pack.Reader, a *ann.Reader, backend embed.Backend, blockCacheSize, ioBatchSize int, prefetch bool, repair BlockRepairer) (*Retriever, error) {
	chunkByID := make(map[uint64]pack.ChunkEntry, len(p.ChunkEntries))
	for _, e := range p.ChunkEntries {
		chunkByID[e.ChunkID] = e
	}

	loader := func(ctx context.Context, blockID uint32) ([]byte, error) {
		return loadBlock(p, repair, blockID)
	}
	c, err := cache.New(blockCacheSize, loader, ioBatchSize, prefetch, p.NumBlocks())
	if err != nil {
		return nil, err
	}
	return &Retriever{
		Pack: p, Ann: a, Cache: c, Backend: backend,
		EfSearch:  DefaultEfSearch,
		chunkByID: chunkByID,
	}, nil
}

// BlockRepairer attempts to reconstruct a corrupt block's compressed
// bytes from its ECC group. It returns the repaired compressed bytes,
// or an error if repair is impossible.
type BlockRepairer func(p *pack.Reader, blockID uint32) ([]byte, error)

func loadBlock(p *pack.Reader, repair BlockRepairer, blockID uint32) ([]byte, error) {
	ok, err := p.VerifyBlockChecksum(blockID)
	if err != nil {
		return nil, err
	}
	var compressed []byte
	if !ok {
		if repair == nil {
			return nil, errors.E(errors.BlockCorrupt, "block checksum mismatch")
		}
		compressed, err = repair(p, blockID)
		if err != nil {
			return nil, err
		}
	} else {
		compressed, err = p.CompressedBlock(blockID)
		if err != nil {
			return nil, err
		}
	}
	e := p.BlockEntries[blockID]
	dst := make([]byte, 0, e.UncompressedSize)
	out, err := compress.Decompress(compress.Codec(e.Codec), dst, compressed)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Search answers query: embeds it, searches the ANN graph, applies
// filterMeta (exact key/value equality on every entry), and returns up
// to topK hits ordered by ascending distance (ties broken by ascending
// chunk_id).
func (r *Retriever) Search(ctx context.Context, query string, topK int, filterMeta map[string]meta.Value) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	vecs, err := embed.EncodeAll(ctx, r.Backend, []string{query}, 1)
	if err != nil {
		return nil, err
	}
	qvec := vecs[0]

	ef := r.EfSearch
	if ef <= 0 {
		ef = DefaultEfSearch
	}
	want := topK
	if len(filterMeta) > 0 {
		want = topK * 2
	}
	if want > r.Ann.N() {
		want = r.Ann.N()
	}

	hits := make([]Hit, 0, topK)
	for want <= r.Ann.N() {
		candidates, err := r.Ann.Search(qvec, want, ef)
		if err != nil {
			return nil, err
		}
		hits, err = r.resolve(ctx, candidates, filterMeta, topK)
		if err != nil {
			return nil, err
		}
		if len(hits) >= topK || want == r.Ann.N() {
			break
		}
		want *= 2
		if want > r.Ann.N() {
			want = r.Ann.N()
		}
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// resolve translates ANN candidates to chunk IDs, applies filterMeta,
// and fetches text for up to topK surviving candidates in ascending
// distance order. A candidate whose block is poisoned (BlockCorrupt,
// EccUnrecoverable, or ChunkUnavailable) is dropped rather than
// failing the whole call, per spec.md §7's Search-tolerates-
// ChunkUnavailable policy; any other error fetching a block (e.g. a
// genuine I/O failure or a deadline expiring) is fatal and aborts
// resolve immediately.
func (r *Retriever) resolve(ctx context.Context, candidates []ann.Result, filterMeta map[string]meta.Value, topK int) ([]Hit, error) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return r.Ann.ChunkID(candidates[i].VectorID) < r.Ann.ChunkID(candidates[j].VectorID)
	})

	type survivor struct {
		chunkID uint64
		dist    float32
		entry   pack.ChunkEntry
		m       meta.Record
	}
	var survivors []survivor
	blockSet := make(map[uint32]bool)
	for _, c := range candidates {
		if len(survivors) >= topK {
			break
		}
		chunkID := r.Ann.ChunkID(c.VectorID)
		entry, ok := r.chunkByID[chunkID]
		if !ok {
			continue
		}
		m, err := r.Pack.ChunkMeta(entry)
		if err != nil {
			return nil, err
		}
		if !matchesFilter(m, filterMeta) {
			continue
		}
		survivors = append(survivors, survivor{chunkID, c.Distance, entry, m})
		blockSet[entry.BlockID] = true
	}

	blockIDs := make([]uint32, 0, len(blockSet))
	for id := range blockSet {
		blockIDs = append(blockIDs, id)
	}
	sort.Slice(blockIDs, func(i, j int) bool { return blockIDs[i] < blockIDs[j] })
	blocks, blockErrs := r.Cache.GetBatch(ctx, blockIDs)
	blockData := make(map[uint32][]byte, len(blockIDs))
	poisoned := make(map[uint32]bool, len(blockIDs))
	for i, id := range blockIDs {
		if blockErrs[i] != nil {
			if !isChunkUnavailable(blockErrs[i]) {
				return nil, blockErrs[i]
			}
			poisoned[id] = true
			continue
		}
		blockData[id] = blocks[i]
	}

	hits := make([]Hit, 0, len(survivors))
	for _, s := range survivors {
		if poisoned[s.entry.BlockID] {
			continue
		}
		data := blockData[s.entry.BlockID]
		if uint64(len(data)) < uint64(s.entry.OffsetInBlock)+uint64(s.entry.Length) {
			return nil, errors.E(errors.ChunkUnavailable, "chunk out of block range")
		}
		text := string(data[s.entry.OffsetInBlock : s.entry.OffsetInBlock+s.entry.Length])
		hits = append(hits, Hit{ChunkID: s.chunkID, Score: 1 - s.dist, Text: text, Meta: s.m})
	}
	return hits, nil
}

func matchesFilter(m meta.Record, filter map[string]meta.Value) bool {
	for k, want := range filter {
		got, ok := m.Get(k)
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}
