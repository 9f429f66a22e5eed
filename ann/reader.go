package ann

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/maurocanuto/mempack/bitset"
	"github.com/maurocanuto/mempack/errors"
)

// Reader provides read-only, memory-mapped access to a .ann file. Its
// Search method walks the graph directly against the mapping: vectors
// and neighbor lists are decoded on demand, never copied up front.
type Reader struct {
	file *os.File
	mm   mmap.MMap
	data []byte

	hdr          fileHeader
	nodeOffsets  []uint64 // per-node byte offset into the neighbor blob
	neighborBase uint64
	idMap        []uint64 // nil if absent (identity mapping)
}

// Open memory-maps (or, if useMmap is false, fully reads) the .ann file
// at path and validates its header.
func Open(path string, useMmap bool) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(errors.IoError, err, "opening "+path)
	}
	var data []byte
	var mm mmap.MMap
	if useMmap {
		mm, err = mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			return nil, errors.E(errors.IoError, err, "mmap "+path)
		}
		data = mm
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			f.Close()
			return nil, errors.E(errors.IoError, err, "reading "+path)
		}
	}

	r, err := openANN(data)
	if err != nil {
		if mm != nil {
			mm.Unmap()
		}
		f.Close()
		return nil, err
	}
	r.file = f
	r.mm = mm
	return r, nil
}

func openANN(data []byte) (*Reader, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	r := &Reader{data: data, hdr: h}

	offsetTableOff := h.layerTableOffset + uint64(h.n)
	if uint64(len(data)) < offsetTableOff+uint64(h.n)*8 {
		return nil, errors.E(errors.AnnCorrupt, "ann node offset table truncated")
	}
	r.nodeOffsets = make([]uint64, h.n)
	for i := 0; i < h.n; i++ {
		r.nodeOffsets[i] = binary.LittleEndian.Uint64(data[offsetTableOff+uint64(i)*8:])
	}
	r.neighborBase = h.neighborsOffset + uint64(h.n)*8

	if h.idMapOffset != 0 {
		if uint64(len(data)) < h.idMapOffset+uint64(h.n)*8 {
			return nil, errors.E(errors.AnnCorrupt, "ann id map truncated")
		}
		r.idMap = make([]uint64, h.n)
		for i := 0; i < h.n; i++ {
			r.idMap[i] = binary.LittleEndian.Uint64(data[h.idMapOffset+uint64(i)*8:])
		}
	}
	return r, nil
}

// Close releases the reader's memory map and file handle.
func (r *Reader) Close() error {
	var err error
	if r.mm != nil {
		if uerr := r.mm.Unmap(); uerr != nil {
			err = errors.E(errors.IoError, uerr, "unmapping")
		}
	}
	if r.file != nil {
		if cerr := r.file.Close(); cerr != nil && err == nil {
			err = errors.E(errors.IoError, cerr, "closing")
		}
	}
	return err
}

// Dim, N, M, EfConstruction, Metric, EntryPoint, Seed expose
// the header fields.
func (r *Reader) Dim() int            { return r.hdr.d }
func (r *Reader) N() int              { return r.hdr.n }
func (r *Reader) M() int              { return r.hdr.m }
func (r *Reader) EfConstruction() int { return r.hdr.efConstruction }
func (r *Reader) Metric() Metric      { return r.hdr.metric }
func (r *Reader) EntryPoint() uint32  { return r.hdr.entryPoint }
func (r *Reader) Seed() uint64        { return r.hdr.seed }

// ChunkID translates a vector_id to its chunk_id via the id_map
// section, or returns vectorID unchanged if no id_map is present.
func (r *Reader) ChunkID(vectorID uint32) uint64 {
	if r.idMap == nil {
		return uint64(vectorID)
	}
	return r.idMap[vectorID]
}

func (r *Reader) vectorAt(id uint32) []float32 {
	off := uint64(headerSize) + uint64(id)*uint64(r.hdr.d)*4
	out := make([]float32, r.hdr.d)
	for i := 0; i < r.hdr.d; i++ {
		bits := binary.LittleEndian.Uint32(r.data[off+uint64(i)*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func (r *Reader) levelAt(id uint32) int {
	return int(r.data[r.hdr.layerTableOffset+uint64(id)])
}

// neighborsAt decodes node id's neighbor list at level lc directly from
// the mapping.
func (r *Reader) neighborsAt(id uint32, lc int) []uint32 {
	off := r.neighborBase + r.nodeOffsets[id]
	for l := 0; l < lc; l++ {
		count := binary.LittleEndian.Uint32(r.data[off:])
		off += 4 + uint64(count)*4
	}
	count := binary.LittleEndian.Uint32(r.data[off:])
	off += 4
	out := make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		out[i] = binary.LittleEndian.Uint32(r.data[off+uint64(i)*4:])
	}
	return out
}

func (r *Reader) distance(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return 1 - dot
}

func (r *Reader) greedyClosest(query []float32, ep uint32, lc int) uint32 {
	best := ep
	bestDist := r.distance(query, r.vectorAt(ep))
	improved := true
	for improved {
		improved = false
		for _, n := range r.neighborsAt(best, lc) {
			d := r.distance(query, r.vectorAt(n))
			if d < bestDist {
				bestDist = d
				best = n
				improved = true
			}
		}
	}
	return best
}

func (r *Reader) maxLevel() int {
	return r.levelAt(r.hdr.entryPoint)
}

// Search returns up to topK (vector_id, distance) results closest to
// query, which must already be L2-normalized and of dimension Dim().
func (r *Reader) Search(query []float32, topK, efSearch int) ([]Result, error) {
	if len(query) != r.hdr.d {
		return nil, errors.E(errors.DimensionMismatch, "ann: query dimension mismatch")
	}
	if topK <= 0 || r.hdr.n == 0 {
		return nil, nil
	}
	ep := r.hdr.entryPoint
	for lc := r.maxLevel(); lc > 0; lc-- {
		ep = r.greedyClosest(query, ep, lc)
	}

	visited := make([]uintptr, (r.hdr.n+bitset.BitsPerWord-1)/bitset.BitsPerWord)
	d0 := r.distance(query, r.vectorAt(ep))
	candidates := []annCand{{ep, d0}}
	results := []annCand{{ep, d0}}
	bitset.Set(visited, int(ep))

	for len(candidates) > 0 {
		best := 0
		for i := range candidates {
			if candidates[i].dist < candidates[best].dist {
				best = i
			}
		}
		c := candidates[best]
		candidates = append(candidates[:best], candidates[best+1:]...)

		worstInResults := worstDist(results)
		if len(results) >= efSearch && c.dist > worstInResults {
			break
		}
		for _, n := range r.neighborsAt(c.id, 0) {
			if bitset.Test(visited, int(n)) {
				continue
			}
			bitset.Set(visited, int(n))
			d := r.distance(query, r.vectorAt(n))
			if len(results) < efSearch || d < worstDist(results) {
				candidates = append(candidates, annCand{n, d})
				results = append(results, annCand{n, d})
			}
		}
	}

	// partial selection sort for the topK smallest, stable on (dist, id)
	for i := 0; i < len(results) && i < topK; i++ {
		min := i
		for j := i + 1; j < len(results); j++ {
			if results[j].dist < results[min].dist ||
				(results[j].dist == results[min].dist && results[j].id < results[min].id) {
				min = j
			}
		}
		results[i], results[min] = results[min], results[i]
	}
	if len(results) > topK {
		results = results[:topK]
	}
	out := make([]Result, len(results))
	for i, c := range results {
		out[i] = Result{VectorID: c.id, Distance: c.dist}
	}
	return out, nil
}

type annCand struct {
	id   uint32
	dist float32
}

func worstDist(results []annCand) float32 {
	w := results[0].dist
	for _, r := range results {
		if r.dist > w {
			w = r.dist
		}
	}
	return w
}
