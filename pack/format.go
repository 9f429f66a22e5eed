// Package pack implements the .mpack container: a fixed-layout binary
// format combining a section table, chunk and block tables of
// contents, compressed block payloads, a per-block checksum array, and
// an optional Reed-Solomon ECC section, closed by a footer that
// duplicates the section table and carries an overall XXH3 checksum.
//
// Layout and section ordering are fixed (spec.md §4.4, §6): header
// (placeholder, rewritten last) -> CONFIG -> TOC-CHUNKS -> TOC-BLOCKS
// -> BLOCKS -> CHECKSUMS -> ECC -> TAG-INDEX? -> FOOTER -> header
// section table. All multi-byte integers are little-endian.
package pack

import (
	"encoding/binary"

	"github.com/maurocanuto/mempack/errors"
)

// Magic identifies a .mpack file.
var Magic = [4]byte{'M', 'P', 'C', 'K'}

// Version is the current container format version.
const Version uint16 = 1

// Section tags, in fixed write order.
var (
	TagConfig    = [4]byte{'C', 'N', 'F', 'G'}
	TagTOCChunks = [4]byte{'T', 'O', 'C', 'C'}
	TagTOCBlocks = [4]byte{'T', 'O', 'C', 'B'}
	TagBlocks    = [4]byte{'B', 'L', 'K', 'S'}
	TagChecksums = [4]byte{'C', 'S', 'U', 'M'}
	TagECC       = [4]byte{'E', 'C', 'C', 'G'}
	TagTagIndex  = [4]byte{'T', 'A', 'G', 'I'}
	TagFooter    = [4]byte{'F', 'O', 'O', 'T'}
)

// sectionOrder lists the mandatory sections in write order. TAGI is
// optional and, when absent, simply contributes no entry.
var sectionOrder = [][4]byte{TagConfig, TagTOCChunks, TagTOCBlocks, TagBlocks, TagChecksums, TagECC}

// SectionEntry records one section's location within the file.
type SectionEntry struct {
	Tag    [4]byte
	Offset uint64
	Length uint64
}

const sectionEntrySize = 4 + 8 + 8

func putSectionEntry(dst []byte, e SectionEntry) {
	copy(dst[0:4], e.Tag[:])
	binary.LittleEndian.PutUint64(dst[4:12], e.Offset)
	binary.LittleEndian.PutUint64(dst[12:20], e.Length)
}

func getSectionEntry(src []byte) SectionEntry {
	var e SectionEntry
	copy(e.Tag[:], src[0:4])
	e.Offset = binary.LittleEndian.Uint64(src[4:12])
	e.Length = binary.LittleEndian.Uint64(src[12:20])
	return e
}

// Header is the fixed-size leading section of a .mpack file.
type Header struct {
	Magic    [4]byte
	Version  uint16
	Flags    uint32
	Sections []SectionEntry
}

// HeaderSize returns the byte size of a header carrying n sections.
func HeaderSize(n int) int {
	return 4 + 2 + 4 + 2 + n*sectionEntrySize
}

// Encode serializes h.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize(len(h.Sections)))
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint32(buf[6:10], h.Flags)
	binary.LittleEndian.PutUint16(buf[10:12], uint16(len(h.Sections)))
	off := 12
	for _, s := range h.Sections {
		putSectionEntry(buf[off:off+sectionEntrySize], s)
		off += sectionEntrySize
	}
	return buf
}

// DecodeHeader parses a header from the start of data.
func DecodeHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < 12 {
		return h, errors.E(errors.HeaderCorrupt, "header truncated")
	}
	copy(h.Magic[:], data[0:4])
	if h.Magic != Magic {
		return h, errors.E(errors.BadMagic, "not a mempack container")
	}
	h.Version = binary.LittleEndian.Uint16(data[4:6])
	if h.Version != Version {
		return h, errors.E(errors.UnsupportedVersion, "unsupported .mpack version")
	}
	h.Flags = binary.LittleEndian.Uint32(data[6:10])
	n := int(binary.LittleEndian.Uint16(data[10:12]))
	off := 12
	if len(data) < off+n*sectionEntrySize {
		return h, errors.E(errors.HeaderCorrupt, "section table truncated")
	}
	h.Sections = make([]SectionEntry, n)
	for i := 0; i < n; i++ {
		h.Sections[i] = getSectionEntry(data[off : off+sectionEntrySize])
		off += sectionEntrySize
	}
	return h, nil
}

// Find returns the section entry with the given tag, if present.
func (h Header) Find(tag [4]byte) (SectionEntry, bool) {
	for _, s := range h.Sections {
		if s.Tag == tag {
			return s, true
		}
	}
	return SectionEntry{}, false
}

// Footer duplicates the section table (including FOOT's own entry,
// with Length set to the footer's size) and carries an XXH3 checksum
// over the entire file except the checksum field itself.
type Footer struct {
	Sections []SectionEntry
	Checksum uint64
}

// Encode serializes f. The checksum field is written last and is not
// itself covered by Checksum.
func (f Footer) Encode() []byte {
	buf := make([]byte, 2+len(f.Sections)*sectionEntrySize+8)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(f.Sections)))
	off := 2
	for _, s := range f.Sections {
		putSectionEntry(buf[off:off+sectionEntrySize], s)
		off += sectionEntrySize
	}
	binary.LittleEndian.PutUint64(buf[off:off+8], f.Checksum)
	return buf
}

// DecodeFooter parses a footer from data (the trailing bytes of the file).
func DecodeFooter(data []byte) (Footer, error) {
	var f Footer
	if len(data) < 2 {
		return f, errors.E(errors.FooterCorrupt, "footer truncated")
	}
	n := int(binary.LittleEndian.Uint16(data[0:2]))
	need := 2 + n*sectionEntrySize + 8
	if len(data) < need {
		return f, errors.E(errors.FooterCorrupt, "footer section table truncated")
	}
	off := 2
	f.Sections = make([]SectionEntry, n)
	for i := 0; i < n; i++ {
		f.Sections[i] = getSectionEntry(data[off : off+sectionEntrySize])
		off += sectionEntrySize
	}
	f.Checksum = binary.LittleEndian.Uint64(data[off : off+8])
	return f, nil
}
