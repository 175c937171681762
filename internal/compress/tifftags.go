package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// TIFF field types from the 6.0 specification.
const (
	tiffByte      = 1
	tiffASCII     = 2
	tiffShort     = 3
	tiffLong      = 4
	tiffRational  = 5
	tiffSByte     = 6
	tiffUndefined = 7
	tiffSShort    = 8
	tiffSLong     = 9
	tiffSRational = 10
	tiffFloat     = 11
	tiffDouble    = 12
)

// maxTagValues caps a single entry so a corrupt count cannot exhaust memory.
const maxTagValues = 1 << 20

var errNotTIFF = errors.New("not a TIFF file")

var typeSizes = map[uint16]uint32{
	tiffByte: 1, tiffASCII: 1, tiffShort: 2, tiffLong: 4, tiffRational: 8,
	tiffSByte: 1, tiffUndefined: 1, tiffSShort: 2, tiffSLong: 4,
	tiffSRational: 8, tiffFloat: 4, tiffDouble: 8,
}

// Tag is one decoded IFD entry.
type Tag struct {
	ID     uint16
	Type   uint16
	Values []any
}

// ReadTags decodes every entry of the first image file directory.
// ASCII entries yield a single string; rationals yield [numerator,
// denominator] pairs; other types yield numbers. Entries of unknown type
// are skipped.
func ReadTags(r io.ReaderAt) ([]Tag, error) {
	header := make([]byte, 8)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, errNotTIFF
	}
	if order.Uint16(header[2:4]) != 42 {
		return nil, errNotTIFF
	}
	ifd := int64(order.Uint32(header[4:8]))

	countBuf := make([]byte, 2)
	if _, err := r.ReadAt(countBuf, ifd); err != nil {
		return nil, fmt.Errorf("read IFD count: %w", err)
	}
	n := int(order.Uint16(countBuf))
	entries := make([]byte, 12*n)
	if _, err := r.ReadAt(entries, ifd+2); err != nil {
		return nil, fmt.Errorf("read IFD entries: %w", err)
	}

	tags := make([]Tag, 0, n)
	for i := range n {
		e := entries[i*12 : (i+1)*12]
		id := order.Uint16(e[0:2])
		typ := order.Uint16(e[2:4])
		count := order.Uint32(e[4:8])
		size, ok := typeSizes[typ]
		if !ok {
			continue
		}
		if count > maxTagValues {
			return nil, fmt.Errorf("tag %d: count %d too large", id, count)
		}
		raw := e[8:12]
		if total := size * count; total > 4 {
			raw = make([]byte, total)
			if _, err := r.ReadAt(raw, int64(order.Uint32(e[8:12]))); err != nil {
				return nil, fmt.Errorf("tag %d: read values: %w", id, err)
			}
		}
		tags = append(tags, Tag{ID: id, Type: typ, Values: decodeValues(order, typ, count, raw)})
	}
	return tags, nil
}

func decodeValues(order binary.ByteOrder, typ uint16, count uint32, raw []byte) []any {
	if typ == tiffASCII {
		s := string(raw[:count])
		for len(s) > 0 && s[len(s)-1] == 0 {
			s = s[:len(s)-1]
		}
		return []any{s}
	}
	out := make([]any, 0, count)
	for i := range int(count) {
		switch typ {
		case tiffByte, tiffUndefined:
			out = append(out, raw[i])
		case tiffSByte:
			out = append(out, int8(raw[i]))
		case tiffShort:
			out = append(out, order.Uint16(raw[i*2:]))
		case tiffSShort:
			out = append(out, int16(order.Uint16(raw[i*2:])))
		case tiffLong:
			out = append(out, order.Uint32(raw[i*4:]))
		case tiffSLong:
			out = append(out, int32(order.Uint32(raw[i*4:])))
		case tiffRational:
			out = append(out, [2]uint32{order.Uint32(raw[i*8:]), order.Uint32(raw[i*8+4:])})
		case tiffSRational:
			out = append(out, [2]int32{int32(order.Uint32(raw[i*8:])), int32(order.Uint32(raw[i*8+4:]))})
		case tiffFloat:
			out = append(out, finite(float64(math.Float32frombits(order.Uint32(raw[i*4:])))))
		case tiffDouble:
			out = append(out, finite(math.Float64frombits(order.Uint64(raw[i*8:]))))
		}
	}
	return out
}

// finite keeps JSON encoding possible for NaN and infinities.
func finite(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	return v
}
