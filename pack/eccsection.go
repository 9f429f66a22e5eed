package pack

import (
	"encoding/binary"

	"github.com/maurocanuto/mempack/ecc"
	"github.com/maurocanuto/mempack/errors"
)

// EncodeECCSection serializes the group table followed by the
// concatenated parity bytes for all groups, per spec.md §4.3: "group
// table (group_id, [block_ids], padded_size, parity_offset,
// parity_size) followed by concatenated parity bytes."
func EncodeECCSection(groups []ecc.Group, parity []byte) []byte {
	var tableSize int
	for _, g := range groups {
		tableSize += 4 + 4 + 4*len(g.BlockIDs) + 8 + 8 + 8
	}
	buf := make([]byte, 4+tableSize+len(parity))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(groups)))
	off := 4
	for _, g := range groups {
		binary.LittleEndian.PutUint32(buf[off:], g.GroupID)
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(g.BlockIDs)))
		off += 4
		for _, id := range g.BlockIDs {
			binary.LittleEndian.PutUint32(buf[off:], id)
			off += 4
		}
		binary.LittleEndian.PutUint64(buf[off:], g.PaddedSize)
		off += 8
		binary.LittleEndian.PutUint64(buf[off:], g.ParityOffset)
		off += 8
		binary.LittleEndian.PutUint64(buf[off:], g.ParitySize)
		off += 8
	}
	copy(buf[off:], parity)
	return buf
}

// DecodeECCSection parses a group table plus trailing parity bytes,
// returning the groups (with ParityOffset relative to the start of
// the parity area) and a slice over the parity bytes.
func DecodeECCSection(data []byte) ([]ecc.Group, []byte, error) {
	if len(data) < 4 {
		return nil, nil, nil
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	off := 4
	groups := make([]ecc.Group, n)
	for i := 0; i < n; i++ {
		if len(data) < off+8 {
			return nil, nil, errors.E(errors.HeaderCorrupt, "ecc group table truncated")
		}
		gid := binary.LittleEndian.Uint32(data[off:])
		off += 4
		cnt := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if len(data) < off+4*cnt+24 {
			return nil, nil, errors.E(errors.HeaderCorrupt, "ecc group table truncated")
		}
		ids := make([]uint32, cnt)
		for j := 0; j < cnt; j++ {
			ids[j] = binary.LittleEndian.Uint32(data[off:])
			off += 4
		}
		padded := binary.LittleEndian.Uint64(data[off:])
		off += 8
		parityOff := binary.LittleEndian.Uint64(data[off:])
		off += 8
		paritySize := binary.LittleEndian.Uint64(data[off:])
		off += 8
		groups[i] = ecc.Group{
			GroupID:      gid,
			BlockIDs:     ids,
			PaddedSize:   padded,
			ParityOffset: parityOff,
			ParitySize:   paritySize,
		}
	}
	return groups, data[off:], nil
}
