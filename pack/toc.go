package pack

import (
	"encoding/binary"

	"github.com/maurocanuto/mempack/errors"
)

// ChunkEntry is one TOC-CHUNKS record: where a chunk's bytes and meta
// live. Entries are dense and sorted by ChunkID.
type ChunkEntry struct {
	ChunkID     uint64
	BlockID     uint32
	OffsetInBlock uint32
	Length      uint32
	MetaOffset  uint64
	MetaLength  uint32
}

const chunkEntrySize = 8 + 4 + 4 + 4 + 8 + 4

// BlockEntry is one TOC-BLOCKS record: a block's location and codec.
// Entries are dense and sorted by BlockID.
type BlockEntry struct {
	BlockID          uint32
	FileOffset       uint64
	CompressedSize   uint32
	UncompressedSize uint32
	Checksum         uint64
	Codec            uint8
	EccGroupID       uint32 // valid iff HasECC
	HasECC           bool
}

const blockEntrySize = 4 + 8 + 4 + 4 + 8 + 1 + 4 + 1

// encodeChunkEntries serializes entries in order, with no framing.
func encodeChunkEntries(entries []ChunkEntry) []byte {
	buf := make([]byte, len(entries)*chunkEntrySize)
	off := 0
	for _, e := range entries {
		binary.LittleEndian.PutUint64(buf[off:], e.ChunkID)
		binary.LittleEndian.PutUint32(buf[off+8:], e.BlockID)
		binary.LittleEndian.PutUint32(buf[off+12:], e.OffsetInBlock)
		binary.LittleEndian.PutUint32(buf[off+16:], e.Length)
		binary.LittleEndian.PutUint64(buf[off+20:], e.MetaOffset)
		binary.LittleEndian.PutUint32(buf[off+28:], e.MetaLength)
		off += chunkEntrySize
	}
	return buf
}

func decodeChunkEntries(data []byte, n int) ([]ChunkEntry, error) {
	if len(data) < n*chunkEntrySize {
		return nil, errors.E(errors.HeaderCorrupt, "toc-chunks entries truncated")
	}
	out := make([]ChunkEntry, n)
	off := 0
	for i := 0; i < n; i++ {
		out[i] = ChunkEntry{
			ChunkID:       binary.LittleEndian.Uint64(data[off:]),
			BlockID:       binary.LittleEndian.Uint32(data[off+8:]),
			OffsetInBlock: binary.LittleEndian.Uint32(data[off+12:]),
			Length:        binary.LittleEndian.Uint32(data[off+16:]),
			MetaOffset:    binary.LittleEndian.Uint64(data[off+20:]),
			MetaLength:    binary.LittleEndian.Uint32(data[off+28:]),
		}
		off += chunkEntrySize
	}
	return out, nil
}

// EncodeChunkSection serializes a complete TOC-CHUNKS section: an
// entry count, the fixed-size entry rows, then the concatenated meta
// blob referenced by each entry's MetaOffset/MetaLength.
func EncodeChunkSection(entries []ChunkEntry, metaBlob []byte) []byte {
	buf := make([]byte, 4, 4+len(entries)*chunkEntrySize+len(metaBlob))
	binary.LittleEndian.PutUint32(buf, uint32(len(entries)))
	buf = append(buf, encodeChunkEntries(entries)...)
	buf = append(buf, metaBlob...)
	return buf
}

// DecodeChunkSection parses a TOC-CHUNKS section into its entries and
// meta blob.
func DecodeChunkSection(data []byte) ([]ChunkEntry, []byte, error) {
	if len(data) < 4 {
		return nil, nil, errors.E(errors.HeaderCorrupt, "toc-chunks section truncated")
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	entries, err := decodeChunkEntries(data[4:], n)
	if err != nil {
		return nil, nil, err
	}
	metaBlob := data[4+n*chunkEntrySize:]
	return entries, metaBlob, nil
}

// EncodeBlockEntries serializes entries in order.
func EncodeBlockEntries(entries []BlockEntry) []byte {
	buf := make([]byte, len(entries)*blockEntrySize)
	off := 0
	for _, e := range entries {
		binary.LittleEndian.PutUint32(buf[off:], e.BlockID)
		binary.LittleEndian.PutUint64(buf[off+4:], e.FileOffset)
		binary.LittleEndian.PutUint32(buf[off+12:], e.CompressedSize)
		binary.LittleEndian.PutUint32(buf[off+16:], e.UncompressedSize)
		binary.LittleEndian.PutUint64(buf[off+20:], e.Checksum)
		buf[off+28] = e.Codec
		binary.LittleEndian.PutUint32(buf[off+29:], e.EccGroupID)
		if e.HasECC {
			buf[off+33] = 1
		}
		off += blockEntrySize
	}
	return buf
}

// DecodeBlockEntries parses a TOC-BLOCKS section.
func DecodeBlockEntries(data []byte) ([]BlockEntry, error) {
	if len(data)%blockEntrySize != 0 {
		return nil, errors.E(errors.HeaderCorrupt, "toc-blocks section misaligned")
	}
	n := len(data) / blockEntrySize
	out := make([]BlockEntry, n)
	off := 0
	for i := 0; i < n; i++ {
		out[i] = BlockEntry{
			BlockID:          binary.LittleEndian.Uint32(data[off:]),
			FileOffset:       binary.LittleEndian.Uint64(data[off+4:]),
			CompressedSize:   binary.LittleEndian.Uint32(data[off+12:]),
			UncompressedSize: binary.LittleEndian.Uint32(data[off+16:]),
			Checksum:         binary.LittleEndian.Uint64(data[off+20:]),
			Codec:            data[off+28],
			EccGroupID:       binary.LittleEndian.Uint32(data[off+29:]),
			HasECC:           data[off+33] != 0,
		}
		off += blockEntrySize
	}
	return out, nil
}

// EncodeChecksums serializes a packed array of per-block XXH3 values,
// indexed by block_id.
func EncodeChecksums(sums []uint64) []byte {
	buf := make([]byte, len(sums)*8)
	for i, s := range sums {
		binary.LittleEndian.PutUint64(buf[i*8:], s)
	}
	return buf
}

// DecodeChecksums parses a CHECKSUMS section.
func DecodeChecksums(data []byte) ([]uint64, error) {
	if len(data)%8 != 0 {
		return nil, errors.E(errors.HeaderCorrupt, "checksums section misaligned")
	}
	out := make([]uint64, len(data)/8)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return out, nil
}
