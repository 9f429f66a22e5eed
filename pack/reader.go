package pack

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/zeebo/xxh3"

	"github.com/maurocanuto/mempack/ecc"
	"github.com/maurocanuto/mempack/errors"
)

// Reader opens a .mpack container for read-only access. It memory-maps
// TOC and CHECKSUMS sections (per spec.md §4.4); block payloads are
// addressed by slicing the same mapping and are fetched on demand by
// the block cache. A Reader's lifetime is scoped: Close releases the
// mapping and file handle on every exit path.
type Reader struct {
	file *os.File
	mm   mmap.MMap
	data []byte

	Header Header
	Footer Footer

	ChunkEntries []ChunkEntry
	BlockEntries []BlockEntry
	Checksums    []uint64
	ECCGroups    []ecc.Group
	ParityBytes  []byte
	TagIndex     map[string][]uint64
	Config       Config

	metaBlob []byte
	blocks   []byte
}

// Open validates and opens the .mpack file at path. If useMmap is
// false, the file is read fully into memory instead of memory-mapped
// (spec.md §6 `mmap:bool` option).
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

	r, err := open(data)
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

func open(data []byte) (*Reader, error) {
	header, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	footEntry, ok := header.Find(TagFooter)
	if !ok {
		return nil, errors.E(errors.HeaderCorrupt, "missing footer entry")
	}
	if uint64(len(data)) < footEntry.Offset+footEntry.Length {
		return nil, errors.E(errors.FooterCorrupt, "footer out of range")
	}
	footer, err := DecodeFooter(data[footEntry.Offset : footEntry.Offset+footEntry.Length])
	if err != nil {
		return nil, err
	}
	if len(footer.Sections) != len(header.Sections) {
		return nil, errors.E(errors.FooterCorrupt, "footer/header section count mismatch")
	}
	for i := range footer.Sections {
		if footer.Sections[i] != header.Sections[i] {
			return nil, errors.E(errors.FooterCorrupt, "footer/header section table mismatch")
		}
	}

	footerBytes := append([]byte(nil), data[footEntry.Offset:footEntry.Offset+footEntry.Length]...)
	for i := len(footerBytes) - 8; i < len(footerBytes); i++ {
		footerBytes[i] = 0
	}
	sum := xxh3.Hash(append(append([]byte(nil), data[:footEntry.Offset]...), footerBytes...))
	if sum != footer.Checksum {
		return nil, errors.E(errors.FooterCorrupt, "checksum mismatch")
	}

	r := &Reader{Header: header, Footer: footer, data: data}

	section := func(tag [4]byte) ([]byte, bool) {
		e, ok := header.Find(tag)
		if !ok {
			return nil, false
		}
		return data[e.Offset : e.Offset+e.Length], true
	}

	configBytes, _ := section(TagConfig)
	r.Config, err = DecodeConfig(configBytes)
	if err != nil {
		return nil, err
	}

	tocChunksBytes, ok := section(TagTOCChunks)
	if !ok {
		return nil, errors.E(errors.HeaderCorrupt, "missing toc-chunks section")
	}
	chunkEntries, metaBlob, err := DecodeChunkSection(tocChunksBytes)
	if err != nil {
		return nil, err
	}
	r.ChunkEntries = chunkEntries
	r.metaBlob = metaBlob

	tocBlocksBytes, ok := section(TagTOCBlocks)
	if !ok {
		return nil, errors.E(errors.HeaderCorrupt, "missing toc-blocks section")
	}
	r.BlockEntries, err = DecodeBlockEntries(tocBlocksBytes)
	if err != nil {
		return nil, err
	}

	blocksBytes, _ := section(TagBlocks)
	r.blocks = blocksBytes

	checksumBytes, _ := section(TagChecksums)
	r.Checksums, err = DecodeChecksums(checksumBytes)
	if err != nil {
		return nil, err
	}

	eccBytes, _ := section(TagECC)
	groups, parity, err := DecodeECCSection(eccBytes)
	if err != nil {
		return nil, err
	}
	r.ECCGroups = groups
	r.ParityBytes = parity

	if tagBytes, ok := section(TagTagIndex); ok {
		r.TagIndex, err = DecodeTagIndex(tagBytes)
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}

