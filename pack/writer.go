package pack

import (
	"os"

	"github.com/zeebo/xxh3"

	"github.com/maurocanuto/mempack/compress"
	"github.com/maurocanuto/mempack/ecc"
	"github.com/maurocanuto/mempack/errors"
	"github.com/maurocanuto/mempack/log"
	"github.com/maurocanuto/mempack/meta"
)

// DefaultTargetBlockSize is the default uncompressed block size used
// by the block assembler.
const DefaultTargetBlockSize = 64 * 1024

// pendingChunk is a chunk buffered in memory until Build assembles it
// into a block.
type pendingChunk struct {
	text []byte
	meta meta.Record
	tags []string
}

// Writer assembles chunks into blocks and emits a .mpack container.
// Chunking is expected to have already happened; Writer only performs
// block assembly, compression, checksumming, optional ECC, and
// container serialization (spec.md §4.2-§4.4). A Writer is not safe
// for concurrent use; the build phase is single-threaded per
// spec.md §5.
type Writer struct {
	TargetBlockSize int
	Codec           compress.Codec
	ECC             *ecc.Params
	ChunkSize       int
	ChunkOverlap    int

	chunks []pendingChunk
}

// AddChunk buffers a chunk's text, metadata, and tags and returns its
// dense chunk_id (insertion order).
func (w *Writer) AddChunk(text string, m meta.Record, tags []string) uint64 {
	w.chunks = append(w.chunks, pendingChunk{text: []byte(text), meta: m, tags: tags})
	return uint64(len(w.chunks) - 1)
}

// NumChunks returns the number of chunks buffered so far.
func (w *Writer) NumChunks() int { return len(w.chunks) }

type builtBlock struct {
	uncompressed []byte
	compressed   []byte
	chunkSpans   []chunkSpan // offsets within uncompressed, per chunk in this block
}

type chunkSpan struct {
	chunkID uint64
	offset  uint32
	length  uint32
}

func (w *Writer) assembleBlocks() ([]builtBlock, error) {
	target := w.TargetBlockSize
	if target <= 0 {
		target = DefaultTargetBlockSize
	}
	var blocks []builtBlock
	var cur builtBlock
	for id, c := range w.chunks {
		if len(cur.uncompressed) > 0 && len(cur.uncompressed)+len(c.text) > target {
			blocks = append(blocks, cur)
			cur = builtBlock{}
		}
		span := chunkSpan{chunkID: uint64(id), offset: uint32(len(cur.uncompressed)), length: uint32(len(c.text))}
		cur.uncompressed = append(cur.uncompressed, c.text...)
		cur.chunkSpans = append(cur.chunkSpans, span)
		if len(cur.uncompressed) >= target {
			blocks = append(blocks, cur)
			cur = builtBlock{}
		}
	}
	if len(cur.uncompressed) > 0 {
		blocks = append(blocks, cur)
	}
	for i := range blocks {
		compressed, err := compress.Compress(w.Codec, nil, blocks[i].uncompressed)
		if err != nil {
			return nil, errors.E(errors.DecompressError, err, "compressing block")
		}
		blocks[i].compressed = compressed
	}
	return blocks, nil
}

// Build assembles all buffered chunks into the complete byte image of
// a .mpack file.
func (w *Writer) Build() ([]byte, error) {
	blocks, err := w.assembleBlocks()
	if err != nil {
		return nil, err
	}

	blockEntries := make([]BlockEntry, len(blocks))
	checksums := make([]uint64, len(blocks))
	chunkEntries := make([]ChunkEntry, len(w.chunks))
	var blocksSection []byte
	var metaBlob []byte
	tagIndex := map[string][]uint64{}

	for bid, b := range blocks {
		sum := xxh3.Hash(b.compressed)
		checksums[bid] = sum
		blockEntries[bid] = BlockEntry{
			BlockID:          uint32(bid),
			FileOffset:       uint64(len(blocksSection)),
			CompressedSize:   uint32(len(b.compressed)),
			UncompressedSize: uint32(len(b.uncompressed)),
			Checksum:         sum,
			Codec:            uint8(w.Codec),
		}
		blocksSection = append(blocksSection, b.compressed...)

		for _, span := range b.chunkSpans {
			pc := w.chunks[span.chunkID]
			metaBytes := meta.Marshal(pc.meta)
			chunkEntries[span.chunkID] = ChunkEntry{
				ChunkID:       span.chunkID,
				BlockID:       uint32(bid),
				OffsetInBlock: span.offset,
				Length:        span.length,
				MetaOffset:    uint64(len(metaBlob)),
				MetaLength:    uint32(len(metaBytes)),
			}
			metaBlob = append(metaBlob, metaBytes...)
			for _, tag := range pc.tags {
				tagIndex[tag] = append(tagIndex[tag], span.chunkID)
			}
		}
	}

	var eccGroups []ecc.Group
	var parityBytes []byte
	if w.ECC != nil && len(blocks) > 0 {
		if err := w.ECC.Validate(); err != nil {
			return nil, err
		}
		plan := ecc.Plan(*w.ECC, uint32(len(blocks)))
		for gi, g := range plan {
			maxSize := 0
			shards := make([][]byte, len(g.BlockIDs))
			for i, bid := range g.BlockIDs {
				shards[i] = blocks[bid].compressed
				if len(shards[i]) > maxSize {
					maxSize = len(shards[i])
				}
			}
			padded := make([][]byte, len(shards))
			for i, s := range shards {
				p := make([]byte, maxSize)
				copy(p, s)
				padded[i] = p
			}
			parity, err := ecc.Encode(*w.ECC, padded)
			if err != nil {
				return nil, err
			}
			g.PaddedSize = uint64(maxSize)
			g.ParityOffset = uint64(len(parityBytes))
			g.ParitySize = uint64(len(parity))
			plan[gi] = g
			parityBytes = append(parityBytes, parity...)

			for _, bid := range g.BlockIDs {
				blockEntries[bid].HasECC = true
				blockEntries[bid].EccGroupID = g.GroupID
			}
		}
		eccGroups = plan
	}

	tocChunksSection := EncodeChunkSection(chunkEntries, metaBlob)
	tocBlocksSection := EncodeBlockEntries(blockEntries)
	checksumsSection := EncodeChecksums(checksums)
	eccSection := EncodeECCSection(eccGroups, parityBytes)
	configSection := EncodeConfig(Config{
		Compressor:   w.Codec,
		ECC:          w.ECC,
		ChunkSize:    w.ChunkSize,
		ChunkOverlap: w.ChunkOverlap,
	})
	var tagSection []byte
	if len(tagIndex) > 0 {
		tagSection = EncodeTagIndex(tagIndex)
	}

	return assembleFile(configSection, tocChunksSection, tocBlocksSection, blocksSection, checksumsSection, eccSection, tagSection)
}

func assembleFile(config, tocChunks, tocBlocks, blocks, checksums, eccSection, tagSection []byte) ([]byte, error) {
	sections := [][]byte{config, tocChunks, tocBlocks, blocks, checksums, eccSection}
	tags := [][4]byte{TagConfig, TagTOCChunks, TagTOCBlocks, TagBlocks, TagChecksums, TagECC}
	if tagSection != nil {
		sections = append(sections, tagSection)
		tags = append(tags, TagTagIndex)
	}

	// Section count includes FOOT, so the header's table matches the
	// footer's table exactly (spec.md §4.4: "cross-checks it against
	// the header's table").
	numSections := len(sections) + 1
	headerSize := HeaderSize(numSections)

	entries := make([]SectionEntry, 0, numSections)
	off := uint64(headerSize)
	var body []byte
	for i, s := range sections {
		entries = append(entries, SectionEntry{Tag: tags[i], Offset: off, Length: uint64(len(s))})
		body = append(body, s...)
		off += uint64(len(s))
	}

	footerSections := append([]SectionEntry(nil), entries...)
	footerSections = append(footerSections, SectionEntry{Tag: TagFooter, Offset: off, Length: 0})
	footer := Footer{Sections: footerSections}
	footerBytes := footer.Encode()
	footerSections[len(footerSections)-1].Length = uint64(len(footerBytes))
	footer.Sections = footerSections

	header := Header{Magic: Magic, Version: Version, Sections: footerSections}
	headerBytes := header.Encode()
	if len(headerBytes) != headerSize {
		log.Panicf("pack: header size mismatch: got %d, want %d", len(headerBytes), headerSize)
	}

	out := make([]byte, 0, headerSize+len(body)+len(footerBytes))
	out = append(out, headerBytes...)
	out = append(out, body...)

	footerBytes = footer.Encode()
	checksumField := footerBytes[len(footerBytes)-8:]
	for i := range checksumField {
		checksumField[i] = 0
	}
	sum := xxh3.Hash(append(append([]byte(nil), out...), footerBytes...))
	footer.Checksum = sum
	footerBytes = footer.Encode()

	out = append(out, footerBytes...)
	return out, nil
}

// WriteFile builds the container and writes it to path.
func (w *Writer) WriteFile(path string) error {
	data, err := w.Build()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.E(errors.IoError, err, "writing "+path)
	}
	return nil
}
