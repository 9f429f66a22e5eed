package pack

import (
	"github.com/zeebo/xxh3"

	"github.com/maurocanuto/mempack/ecc"
	"github.com/maurocanuto/mempack/errors"
	"github.com/maurocanuto/mempack/meta"
)

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

// NumBlocks returns the number of blocks in the pack.
func (r *Reader) NumBlocks() int { return len(r.BlockEntries) }

// NumChunks returns the number of chunks in the pack.
func (r *Reader) NumChunks() int { return len(r.ChunkEntries) }

// CompressedBlock returns the raw compressed bytes for blockID,
// sliced directly from the backing mapping (no copy).
func (r *Reader) CompressedBlock(blockID uint32) ([]byte, error) {
	if int(blockID) >= len(r.BlockEntries) {
		return nil, errors.E(errors.BlockCorrupt, "block id out of range")
	}
	e := r.BlockEntries[blockID]
	if uint64(len(r.blocks)) < e.FileOffset+uint64(e.CompressedSize) {
		return nil, errors.E(errors.BlockCorrupt, "block out of range")
	}
	return r.blocks[e.FileOffset : e.FileOffset+uint64(e.CompressedSize)], nil
}

// VerifyBlockChecksum reports whether blockID's compressed bytes match
// its recorded XXH3 checksum.
func (r *Reader) VerifyBlockChecksum(blockID uint32) (bool, error) {
	b, err := r.CompressedBlock(blockID)
	if err != nil {
		return false, err
	}
	want := r.BlockEntries[blockID].Checksum
	return xxh3.Hash(b) == want, nil
}

// ChunkMeta decodes and returns the metadata record for a chunk entry.
func (r *Reader) ChunkMeta(e ChunkEntry) (meta.Record, error) {
	if uint64(len(r.metaBlob)) < e.MetaOffset+uint64(e.MetaLength) {
		return nil, errors.E(errors.HeaderCorrupt, "meta out of range")
	}
	return meta.Unmarshal(r.metaBlob[e.MetaOffset : e.MetaOffset+uint64(e.MetaLength)])
}

// BlockGroup returns the ECC group covering blockID, if blockID's
// BlockEntry has HasECC set.
func (r *Reader) BlockGroup(blockID uint32) (ecc.Group, bool) {
	if int(blockID) >= len(r.BlockEntries) || !r.BlockEntries[blockID].HasECC {
		return ecc.Group{}, false
	}
	gid := r.BlockEntries[blockID].EccGroupID
	for _, g := range r.ECCGroups {
		if g.GroupID == gid {
			return g, true
		}
	}
	return ecc.Group{}, false
}
