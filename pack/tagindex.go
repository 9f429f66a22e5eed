package pack

import (
	"encoding/binary"
	"sort"

	"github.com/maurocanuto/mempack/errors"
)

// EncodeTagIndex serializes a tag -> sorted chunk_id list map as the
// optional TAG-INDEX section.
func EncodeTagIndex(index map[string][]uint64) []byte {
	tags := make([]string, 0, len(index))
	for t := range index {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	var buf []byte
	var tmp [8]byte
	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(tags)))
	buf = append(buf, tmp[:4]...)
	for _, tag := range tags {
		binary.LittleEndian.PutUint32(tmp[:4], uint32(len(tag)))
		buf = append(buf, tmp[:4]...)
		buf = append(buf, tag...)

		ids := append([]uint64(nil), index[tag]...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		binary.LittleEndian.PutUint32(tmp[:4], uint32(len(ids)))
		buf = append(buf, tmp[:4]...)
		for _, id := range ids {
			binary.LittleEndian.PutUint64(tmp[:8], id)
			buf = append(buf, tmp[:8]...)
		}
	}
	return buf
}

// DecodeTagIndex parses a TAG-INDEX section.
func DecodeTagIndex(data []byte) (map[string][]uint64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 4 {
		return nil, errors.E(errors.HeaderCorrupt, "tag index truncated")
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	off := 4
	out := make(map[string][]uint64, n)
	for i := 0; i < n; i++ {
		if len(data) < off+4 {
			return nil, errors.E(errors.HeaderCorrupt, "tag index truncated")
		}
		tagLen := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if len(data) < off+tagLen+4 {
			return nil, errors.E(errors.HeaderCorrupt, "tag index truncated")
		}
		tag := string(data[off : off+tagLen])
		off += tagLen
		cnt := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if len(data) < off+cnt*8 {
			return nil, errors.E(errors.HeaderCorrupt, "tag index truncated")
		}
		ids := make([]uint64, cnt)
		for j := 0; j < cnt; j++ {
			ids[j] = binary.LittleEndian.Uint64(data[off:])
			off += 8
		}
		out[tag] = ids
		off += 0
	}
	return out, nil
}
