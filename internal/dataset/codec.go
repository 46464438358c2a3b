package dataset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/klauspost/compress/snappy"
)

// Snapshot wire format: a snappy block wrapping a little-endian payload of
//
//	magic "FLX1" | uint32 numCols | uint64 numRows
//	per column: uvarint name len | name | kind byte |
//	            validity bitmap (ceil(rows/8) bytes) | values
//
// Values: float64 bits / int64 / unix-milli int64 / bool byte, 8 or 1 bytes
// each; strings are uvarint-length-prefixed. Null slots are written as zero
// values and masked out by the bitmap on read.

var magic = [4]byte{'F', 'L', 'X', '1'}

// Encode serializes a table into the compressed snapshot format.
func Encode(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])

	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], uint32(t.NumCols()))
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint64(scratch[:], uint64(t.NumRows()))
	buf.Write(scratch[:8])

	for _, c := range t.Columns() {
		writeUvarint(&buf, uint64(len(c.Name)))
		buf.WriteString(c.Name)
		buf.WriteByte(byte(c.Kind))
		writeBitmap(&buf, c.Valid)

		switch c.Kind {
		case KindFloat:
			for _, v := range c.Float {
				binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v))
				buf.Write(scratch[:8])
			}
		case KindInt:
			for _, v := range c.Int {
				binary.LittleEndian.PutUint64(scratch[:], uint64(v))
				buf.Write(scratch[:8])
			}
		case KindString:
			for _, v := range c.Str {
				writeUvarint(&buf, uint64(len(v)))
				buf.WriteString(v)
			}
		case KindTime:
			for i, v := range c.Time {
				var ms int64
				if c.Valid[i] {
					ms = v.UnixMilli()
				}
				binary.LittleEndian.PutUint64(scratch[:], uint64(ms))
				buf.Write(scratch[:8])
			}
		case KindBool:
			for _, v := range c.Bool {
				if v {
					buf.WriteByte(1)
				} else {
					buf.WriteByte(0)
				}
			}
		default:
			return nil, fmt.Errorf("dataset: cannot encode column %q of kind %d", c.Name, c.Kind)
		}
	}

	return snappy.Encode(nil, buf.Bytes()), nil
}

// Decode reconstructs a table from the compressed snapshot format.
func Decode(data []byte) (*Table, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("dataset: decompress snapshot: %w", err)
	}
	r := &reader{buf: raw}

	var head [4]byte
	if err := r.read(head[:]); err != nil {
		return nil, fmt.Errorf("dataset: read magic: %w", err)
	}
	if head != magic {
		return nil, fmt.Errorf("dataset: bad magic %q", head[:])
	}

	numCols, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("dataset: read column count: %w", err)
	}
	numRows, err := r.uint64()
	if err != nil {
		return nil, fmt.Errorf("dataset: read row count: %w", err)
	}

	cols := make([]*Column, 0, numCols)
	for ci := uint32(0); ci < numCols; ci++ {
		name, err := r.lenString()
		if err != nil {
			return nil, fmt.Errorf("dataset: read column name: %w", err)
		}
		kindByte, err := r.byte()
		if err != nil {
			return nil, fmt.Errorf("dataset: column %q: read kind: %w", name, err)
		}
		kind := Kind(kindByte)

		valid, err := r.bitmap(int(numRows))
		if err != nil {
			return nil, fmt.Errorf("dataset: column %q: read bitmap: %w", name, err)
		}

		c := &Column{Name: name, Kind: kind, Valid: valid}
		switch kind {
		case KindFloat:
			c.Float = make([]float64, numRows)
			for i := range c.Float {
				u, err := r.uint64()
				if err != nil {
					return nil, fmt.Errorf("dataset: column %q row %d: %w", name, i, err)
				}
				c.Float[i] = math.Float64frombits(u)
			}
		case KindInt:
			c.Int = make([]int64, numRows)
			for i := range c.Int {
				u, err := r.uint64()
				if err != nil {
					return nil, fmt.Errorf("dataset: column %q row %d: %w", name, i, err)
				}
				c.Int[i] = int64(u)
			}
		case KindString:
			c.Str = make([]string, numRows)
			for i := range c.Str {
				s, err := r.lenString()
				if err != nil {
					return nil, fmt.Errorf("dataset: column %q row %d: %w", name, i, err)
				}
				c.Str[i] = s
			}
		case KindTime:
			c.Time = make([]time.Time, numRows)
			for i := range c.Time {
				u, err := r.uint64()
				if err != nil {
					return nil, fmt.Errorf("dataset: column %q row %d: %w", name, i, err)
				}
				if valid[i] {
					c.Time[i] = time.UnixMilli(int64(u)).UTC()
				}
			}
		case KindBool:
			c.Bool = make([]bool, numRows)
			for i := range c.Bool {
				b, err := r.byte()
				if err != nil {
					return nil, fmt.Errorf("dataset: column %q row %d: %w", name, i, err)
				}
				c.Bool[i] = b == 1
			}
		default:
			return nil, fmt.Errorf("dataset: column %q has unknown kind %d", name, kindByte)
		}
		cols = append(cols, c)
	}

	return New(cols...)
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeBitmap(buf *bytes.Buffer, valid []bool) {
	bm := make([]byte, (len(valid)+7)/8)
	for i, v := range valid {
		if v {
			bm[i/8] |= 1 << uint(i%8)
		}
	}
	buf.Write(bm)
}

// reader is a bounds-checked cursor over the decompressed payload.
type reader struct {
	buf []byte
	off int
}

func (r *reader) read(dst []byte) error {
	if r.off+len(dst) > len(r.buf) {
		return fmt.Errorf("unexpected end of snapshot at offset %d", r.off)
	}
	copy(dst, r.buf[r.off:])
	r.off += len(dst)
	return nil
}

func (r *reader) byte() (byte, error) {
	if r.off >= len(r.buf) {
		return 0, fmt.Errorf("unexpected end of snapshot at offset %d", r.off)
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	var tmp [4]byte
	if err := r.read(tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}

func (r *reader) uint64() (uint64, error) {
	var tmp [8]byte
	if err := r.read(tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(tmp[:]), nil
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("bad uvarint at offset %d", r.off)
	}
	r.off += n
	return v, nil
}

func (r *reader) lenString() (string, error) {
	n, err := r.uvarint()
	if err != nil {
		return "", err
	}
	if r.off+int(n) > len(r.buf) {
		return "", fmt.Errorf("string length %d overruns snapshot at offset %d", n, r.off)
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

func (r *reader) bitmap(rows int) ([]bool, error) {
	bm := make([]byte, (rows+7)/8)
	if err := r.read(bm); err != nil {
		return nil, err
	}
	valid := make([]bool, rows)
	for i := range valid {
		valid[i] = bm[i/8]&(1<<uint(i%8)) != 0
	}
	return valid, nil
}
