package ucc

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"strings"

	"github.com/nikandfor/errors"
	"golang.org/x/crypto/sha3"
)

// Container fields are big-endian; the function records they carry keep
// their own little-endian layout.

type byteReader struct {
	b []byte
	n int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.n >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.n:])
	r.n += n
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *byteReader) remaining() int { return len(r.b) - r.n }

func writeU16(w io.Writer, v uint16) error {
	return binary.Write(w, binary.BigEndian, v)
}

func writeU32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.BigEndian, v)
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeLenBytes(w io.Writer, b []byte) error {
	if err := writeU32(w, uint32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

func readU16(r *byteReader) (uint16, error) {
	var v uint16
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readU32(r *byteReader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readString(r *byteReader) (string, error) {
	b, err := readLenBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readLenBytes(r *byteReader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.remaining()) {
		return nil, io.ErrUnexpectedEOF
	}
	return readFixedBytes(r, int(n))
}

func readFixedBytes(r *byteReader, n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	copy(out, r.b[r.n:r.n+n])
	r.n += n
	return out, nil
}

func keccak256Bytes(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(data)
	return h.Sum(nil)
}

func keccak256Hex(data []byte) string {
	return "0x" + hex.EncodeToString(keccak256Bytes(data))
}

func decodeHashHex(v string) ([]byte, error) {
	s := strings.TrimSpace(strings.ToLower(v))
	if s == "" {
		return nil, errors.New("empty hash")
	}
	if !strings.HasPrefix(s, "0x") {
		return nil, errors.New("hash must start with 0x")
	}
	raw := s[2:]
	if len(raw) != 64 {
		return nil, errors.New("hash must be 32 bytes")
	}
	return hex.DecodeString(raw)
}
