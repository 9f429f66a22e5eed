// Package ecc implements block-level Reed-Solomon erasure coding over
// GF(2^8), grouping consecutive blocks into (k, m) groups so that up
// to m missing or corrupt members of a group can be reconstructed from
// the remaining k. Groups are built in block-id order without
// interleaving: group g covers blocks [g*k, g*k+k). A final partial
// group (fewer than k members) is encoded as a smaller code over just
// its own members, with the same m parity shards; no padding members
// are stored or reconstructed.
package ecc

import (
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/maurocanuto/mempack/errors"
)

// Params configures the erasure code.
type Params struct {
	K int // data shards per group
	M int // parity shards per group
}

// Validate reports an InvalidConfig error if p is out of range.
func (p Params) Validate() error {
	if p.K <= 0 {
		return errors.E(errors.InvalidConfig, "ecc k must be positive")
	}
	if p.M <= 0 {
		return errors.E(errors.InvalidConfig, "ecc m must be positive")
	}
	if p.K+p.M > 255 {
		return errors.E(errors.InvalidConfig, "ecc k+m must not exceed 255")
	}
	return nil
}

// Group describes one ECC group's membership and parity location, as
// recorded in a pack's ECCG section.
type Group struct {
	GroupID     uint32
	BlockIDs    []uint32 // data shard block_ids, in group order
	PaddedSize  uint64   // size each data/parity shard was padded to
	ParityOffset uint64  // byte offset of this group's parity bytes within the parity area
	ParitySize   uint64  // total bytes of parity for this group (m * PaddedSize)
}

// Plan groups blockCount blocks into consecutive runs of p.K, returning
// one Group per run with BlockIDs populated (PaddedSize/offsets are
// filled in by the caller once payload sizes are known).
func Plan(p Params, blockCount uint32) []Group {
	var groups []Group
	var gid uint32
	for start := uint32(0); start < blockCount; start += uint32(p.K) {
		end := start + uint32(p.K)
		if end > blockCount {
			end = blockCount
		}
		ids := make([]uint32, 0, end-start)
		for b := start; b < end; b++ {
			ids = append(ids, b)
		}
		groups = append(groups, Group{GroupID: gid, BlockIDs: ids})
		gid++
	}
	return groups
}

// Encode computes m parity shards for the data shards in shards (each
// already padded to the same length by the caller). It returns the
// concatenated parity bytes.
func Encode(p Params, shards [][]byte) ([]byte, error) {
	if len(shards) == 0 {
		return nil, nil
	}
	shardSize := len(shards[0])
	all := make([][]byte, len(shards)+p.M)
	copy(all, shards)
	for i := len(shards); i < len(all); i++ {
		all[i] = make([]byte, shardSize)
	}
	enc, err := reedsolomon.New(len(shards), p.M)
	if err != nil {
		return nil, errors.E(errors.InvalidConfig, err, "constructing reed-solomon encoder")
	}
	if err := enc.Encode(all); err != nil {
		return nil, errors.E(errors.EccUnrecoverable, err, "encoding parity")
	}
	parity := make([]byte, 0, p.M*shardSize)
	for i := len(shards); i < len(all); i++ {
		parity = append(parity, all[i]...)
	}
	return parity, nil
}

// Repair attempts to reconstruct missing shards (nil entries in
// shards) given the surviving data and parity shards, all padded to
// shardSize. dataCount is the number of data shards in the group
// (shards[:dataCount] are data, the rest parity). It mutates shards in
// place, filling in any previously-nil entries, and returns an
// EccUnrecoverable error if fewer than dataCount shards survive.
func Repair(dataCount, parityCount int, shards [][]byte) error {
	present := 0
	for _, s := range shards {
		if s != nil {
			present++
		}
	}
	if present < dataCount {
		return errors.E(errors.EccUnrecoverable, fmt.Sprintf("only %d of %d required shards present", present, dataCount))
	}
	enc, err := reedsolomon.New(dataCount, parityCount)
	if err != nil {
		return errors.E(errors.InvalidConfig, err, "constructing reed-solomon decoder")
	}
	if err := enc.Reconstruct(shards); err != nil {
		return errors.E(errors.EccUnrecoverable, err, "reconstructing group")
	}
	return nil
}
