package core

// streaming.go wraps an upload body so the CSV reader never sees encoding
// artifacts:
//
//   - skipBOM drops a leading UTF-8 byte order mark (0xEF 0xBB 0xBF)
//   - utf8Validator fails with ErrEncoding on the first invalid sequence
//   - CountingReader tracks bytes read for logging
//
// Use NewImportReader to apply them in the right order.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned after the BOM, if the input starts with one.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// utf8Validator passes bytes through unchanged and reports the offset of the
// first invalid UTF-8 sequence. A multi-byte rune split across reads is held
// back until the rest of it arrives.
type utf8Validator struct {
	reader io.Reader
	buf    []byte
	out    []byte // validated bytes not yet returned
	carry  []byte // incomplete rune from the previous read
	offset int64
	err    error
}

func newUTF8Validator(r io.Reader) *utf8Validator {
	return &utf8Validator{
		reader: r,
		buf:    make([]byte, 32*1024),
		carry:  make([]byte, 0, utf8.UTFMax),
	}
}

func (v *utf8Validator) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(v.out) == 0 {
		if v.err != nil {
			return 0, v.err
		}
		v.fill()
	}
	n := copy(p, v.out)
	v.out = v.out[n:]
	return n, nil
}

func (v *utf8Validator) fill() {
	k := copy(v.buf, v.carry)
	m, err := v.reader.Read(v.buf[k:])
	data := v.buf[:k+m]

	valid := len(data)
	if err == nil {
		valid -= incompleteTrailingBytes(data)
	}
	if !utf8.Valid(data[:valid]) {
		v.err = fmt.Errorf("%w: invalid UTF-8 near byte %d", ErrEncoding, v.offset+int64(firstInvalid(data[:valid])))
		return
	}

	v.carry = append(v.carry[:0], data[valid:]...)
	v.out = data[:valid]
	v.offset += int64(valid)
	if err != nil {
		v.err = err
	}
}

// firstInvalid returns the index of the first byte that does not start a valid rune.
func firstInvalid(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(data)
}

// incompleteTrailingBytes returns the number of bytes at the end of data
// that could be the start of an incomplete multi-byte UTF-8 sequence.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// CountingReader tracks bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// NewImportReader strips the BOM, then validates UTF-8, then counts bytes.
func NewImportReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: newUTF8Validator(skipBOM(r))}
}
