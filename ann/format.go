package ann

import (
	"encoding/binary"
	"math"

	"github.com/maurocanuto/mempack/errors"
)

// Magic identifies a .ann file.
var Magic = [4]byte{'M', 'P', 'A', 'N'}

// Version is the current .ann format version.
const Version uint16 = 1

const algoHNSW uint8 = 1

// headerSize is the fixed byte size of the .ann header, per spec.md §6:
// magic[4] version:u16 algo:u8 d:u32 N:u32 M:u16 efConstruction:u16
// metric:u8 entry_point:u32 seed:u64 layer_table_offset:u64
// neighbors_offset:u64 id_map_offset:u64.
const headerSize = 4 + 2 + 1 + 4 + 4 + 2 + 2 + 1 + 4 + 8 + 8 + 8 + 8

type fileHeader struct {
	d                int
	n                int
	m                int
	efConstruction   int
	metric           Metric
	entryPoint       uint32
	seed             uint64
	layerTableOffset uint64
	neighborsOffset  uint64
	idMapOffset      uint64
}

func encodeHeader(h fileHeader) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], Version)
	buf[6] = algoHNSW
	binary.LittleEndian.PutUint32(buf[7:11], uint32(h.d))
	binary.LittleEndian.PutUint32(buf[11:15], uint32(h.n))
	binary.LittleEndian.PutUint16(buf[15:17], uint16(h.m))
	binary.LittleEndian.PutUint16(buf[17:19], uint16(h.efConstruction))
	buf[19] = uint8(h.metric)
	binary.LittleEndian.PutUint32(buf[20:24], h.entryPoint)
	binary.LittleEndian.PutUint64(buf[24:32], h.seed)
	binary.LittleEndian.PutUint64(buf[32:40], h.layerTableOffset)
	binary.LittleEndian.PutUint64(buf[40:48], h.neighborsOffset)
	binary.LittleEndian.PutUint64(buf[48:56], h.idMapOffset)
	return buf
}

func decodeHeader(data []byte) (fileHeader, error) {
	var h fileHeader
	if len(data) < headerSize {
		return h, errors.E(errors.AnnCorrupt, "ann header truncated")
	}
	var magic [4]byte
	copy(magic[:], data[0:4])
	if magic != Magic {
		return h, errors.E(errors.BadMagic, "not a mempack ann file")
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != Version {
		return h, errors.E(errors.UnsupportedVersion, "unsupported .ann version")
	}
	if data[6] != algoHNSW {
		return h, errors.E(errors.AnnCorrupt, "unsupported ann algorithm")
	}
	h.d = int(binary.LittleEndian.Uint32(data[7:11]))
	h.n = int(binary.LittleEndian.Uint32(data[11:15]))
	h.m = int(binary.LittleEndian.Uint16(data[15:17]))
	h.efConstruction = int(binary.LittleEndian.Uint16(data[17:19]))
	h.metric = Metric(data[19])
	h.entryPoint = binary.LittleEndian.Uint32(data[20:24])
	h.seed = binary.LittleEndian.Uint64(data[24:32])
	h.layerTableOffset = binary.LittleEndian.Uint64(data[32:40])
	h.neighborsOffset = binary.LittleEndian.Uint64(data[40:48])
	h.idMapOffset = binary.LittleEndian.Uint64(data[48:56])
	return h, nil
}

// Encode serializes g into the complete byte image of a .ann file.
// idMap is nil for an identity vector_id->chunk_id mapping, or a dense
// slice of length len(g.vectors) otherwise.
func Encode(g *Graph, idMap []uint64) []byte {
	n := len(g.vectors)
	vectorsOffset := uint64(headerSize)
	vectorsSize := uint64(n * g.Dim * 4)

	layerTableOffset := vectorsOffset + vectorsSize
	layerTable := make([]byte, n)
	for i, lvl := range g.nodeLevel {
		layerTable[i] = uint8(lvl)
	}

	neighborsOffset := layerTableOffset + uint64(n)
	nodeOffsets := make([]uint64, n)
	var neighborBlobs []byte
	for id := 0; id < n; id++ {
		nodeOffsets[id] = uint64(len(neighborBlobs))
		level := g.nodeLevel[id]
		for lc := 0; lc <= level; lc++ {
			var list []uint32
			if lc < len(g.neighbors) {
				list = g.neighbors[lc][id]
			}
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], uint32(len(list)))
			neighborBlobs = append(neighborBlobs, tmp[:]...)
			for _, nb := range list {
				binary.LittleEndian.PutUint32(tmp[:], nb)
				neighborBlobs = append(neighborBlobs, tmp[:]...)
			}
		}
	}
	offsetTableBytes := make([]byte, n*8)
	for i, off := range nodeOffsets {
		binary.LittleEndian.PutUint64(offsetTableBytes[i*8:], off)
	}

	var idMapOffset uint64
	var idMapBytes []byte
	if idMap != nil {
		idMapOffset = neighborsOffset + uint64(len(offsetTableBytes)) + uint64(len(neighborBlobs))
		idMapBytes = make([]byte, len(idMap)*8)
		for i, v := range idMap {
			binary.LittleEndian.PutUint64(idMapBytes[i*8:], v)
		}
	}

	h := fileHeader{
		d: g.Dim, n: n, m: g.M, efConstruction: g.EfConstruction,
		metric: g.Metric, entryPoint: g.EntryPoint, seed: g.Seed,
		layerTableOffset: layerTableOffset, neighborsOffset: neighborsOffset,
		idMapOffset: idMapOffset,
	}
	out := make([]byte, 0, idMapOffset+uint64(len(idMapBytes)))
	out = append(out, encodeHeader(h)...)
	for _, v := range g.vectors {
		var tmp [4]byte
		for _, f := range v {
			binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(f))
			out = append(out, tmp[:]...)
		}
	}
	out = append(out, layerTable...)
	out = append(out, offsetTableBytes...)
	out = append(out, neighborBlobs...)
	out = append(out, idMapBytes...)
	return out
}
