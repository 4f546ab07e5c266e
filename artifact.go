package ucc

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"strings"

	"github.com/nikandfor/errors"

	"github.com/tos-network/ucc/uc/record"
)

var ucxMagic = [4]byte{'U', 'C', 'X', 0}

// UCXFormatVersion is the binary format version for .ucx artifacts.
const UCXFormatVersion uint16 = 1

// UCXArtifact is a compiled unit together with the hashes needed to check
// it: one per function record, one over all records in order and one over
// the interchange input it was compiled from.
type UCXArtifact struct {
	Version    uint16
	Compiler   string
	Name       string
	Source     string
	SourceHash string
	Functions  []UCXFunction
	UnitHash   string
}

type UCXFunction struct {
	Name   string
	ID     int
	Record []byte
	Hash   string
}

// ErrHashMismatch is returned when a hash recorded in an artifact does not
// match its content.
var ErrHashMismatch = errors.New("hash mismatch")

// IsUCX reports whether the input starts with .ucx magic bytes.
func IsUCX(data []byte) bool {
	return len(data) >= len(ucxMagic) && bytes.Equal(data[:len(ucxMagic)], ucxMagic[:])
}

// NewUCX packs a compilation output. source is the interchange input the
// unit was decoded from.
func NewUCX(out *Output, source []byte) *UCXArtifact {
	a := &UCXArtifact{
		Version:    UCXFormatVersion,
		Compiler:   Compiler,
		Name:       out.Name,
		Source:     out.Source,
		SourceHash: keccak256Hex(source),
		Functions:  make([]UCXFunction, 0, len(out.Functions)),
	}
	for _, f := range out.Functions {
		b := f.Record.Bytes()
		a.Functions = append(a.Functions, UCXFunction{
			Name:   f.Name,
			ID:     f.Record.ID,
			Record: b,
			Hash:   keccak256Hex(b),
		})
	}
	a.UnitHash = keccak256Hex(a.Records())
	return a
}

// Records concatenates the function records in artifact order.
func (a *UCXArtifact) Records() []byte {
	var buf bytes.Buffer
	for _, f := range a.Functions {
		buf.Write(f.Record)
	}
	return buf.Bytes()
}

// CompileJSONToUCX compiles an interchange unit into a .ucx artifact.
func CompileJSONToUCX(ctx context.Context, source []byte, file string, opts *Options) ([]byte, error) {
	out, err := CompileJSON(ctx, bytes.NewReader(source), file, opts)
	if err != nil {
		return nil, err
	}
	return EncodeUCX(NewUCX(out, source))
}

// EncodeUCX serializes an artifact into deterministic bytes.
func EncodeUCX(a *UCXArtifact) ([]byte, error) {
	if a == nil {
		return nil, errors.New("nil ucx artifact")
	}
	if strings.TrimSpace(a.Name) == "" {
		return nil, errors.New("ucx unit name is required")
	}
	version := a.Version
	if version == 0 {
		version = UCXFormatVersion
	}
	compiler := a.Compiler
	if compiler == "" {
		compiler = Compiler
	}
	sourceHash, err := decodeHashHex(a.SourceHash)
	if err != nil {
		return nil, errors.Wrap(err, "invalid source hash")
	}
	unitHash, err := decodeHashHex(a.UnitHash)
	if err != nil {
		return nil, errors.Wrap(err, "invalid unit hash")
	}

	var buf bytes.Buffer
	buf.Write(ucxMagic[:])
	if err := writeU16(&buf, version); err != nil {
		return nil, err
	}
	for _, s := range []string{compiler, strings.TrimSpace(a.Name), a.Source} {
		if err := writeString(&buf, s); err != nil {
			return nil, err
		}
	}
	buf.Write(sourceHash)

	if err := writeU32(&buf, uint32(len(a.Functions))); err != nil {
		return nil, err
	}
	for i, f := range a.Functions {
		if len(f.Record) == 0 {
			return nil, errors.New("function %d (%s): empty record", i, f.Name)
		}
		h, err := decodeHashHex(f.Hash)
		if err != nil {
			return nil, errors.Wrap(err, "function %d (%s): invalid hash", i, f.Name)
		}
		if err := writeString(&buf, f.Name); err != nil {
			return nil, err
		}
		if err := writeLenBytes(&buf, f.Record); err != nil {
			return nil, err
		}
		buf.Write(h)
	}
	buf.Write(unitHash)
	return buf.Bytes(), nil
}

// DecodeUCX deserializes a .ucx payload. Every record must decode on its
// own and every hash must match its content.
func DecodeUCX(data []byte) (*UCXArtifact, error) {
	r := &byteReader{b: data}
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, errors.Wrap(err, "invalid ucx header")
	}
	if magic != ucxMagic {
		return nil, errors.New("invalid ucx magic")
	}
	version, err := readU16(r)
	if err != nil {
		return nil, errors.Wrap(err, "invalid ucx version")
	}
	if version != UCXFormatVersion {
		return nil, errors.New("unsupported ucx version: got=%d want=%d", version, UCXFormatVersion)
	}

	a := &UCXArtifact{Version: version}
	if a.Compiler, err = readString(r); err != nil {
		return nil, errors.Wrap(err, "invalid ucx compiler")
	}
	if a.Name, err = readString(r); err != nil {
		return nil, errors.Wrap(err, "invalid ucx unit name")
	}
	if strings.TrimSpace(a.Name) == "" {
		return nil, errors.New("ucx unit name is empty")
	}
	if a.Source, err = readString(r); err != nil {
		return nil, errors.Wrap(err, "invalid ucx source name")
	}
	sourceHash, err := readFixedBytes(r, 32)
	if err != nil {
		return nil, errors.Wrap(err, "invalid ucx source hash")
	}
	a.SourceHash = "0x" + hex.EncodeToString(sourceHash)

	count, err := readU32(r)
	if err != nil {
		return nil, errors.Wrap(err, "invalid ucx function count")
	}
	// every entry takes at least its two length prefixes and its hash
	if uint64(count)*40 > uint64(r.remaining()) {
		return nil, errors.New("ucx function count %d exceeds payload", count)
	}
	a.Functions = make([]UCXFunction, 0, count)
	for i := 0; i < int(count); i++ {
		f, err := readUCXFunction(r)
		if err != nil {
			return nil, errors.Wrap(err, "function %d", i)
		}
		a.Functions = append(a.Functions, f)
	}

	unitHash, err := readFixedBytes(r, 32)
	if err != nil {
		return nil, errors.Wrap(err, "invalid ucx unit hash")
	}
	if r.n != len(data) {
		return nil, errors.New("trailing bytes in ucx payload")
	}
	if !bytes.Equal(unitHash, keccak256Bytes(a.Records())) {
		return nil, errors.Wrap(ErrHashMismatch, "unit")
	}
	a.UnitHash = "0x" + hex.EncodeToString(unitHash)
	return a, nil
}

func readUCXFunction(r *byteReader) (f UCXFunction, err error) {
	if f.Name, err = readString(r); err != nil {
		return f, errors.Wrap(err, "name")
	}
	if f.Record, err = readLenBytes(r); err != nil {
		return f, errors.Wrap(err, "record")
	}
	h, err := readFixedBytes(r, 32)
	if err != nil {
		return f, errors.Wrap(err, "hash")
	}
	if len(f.Record) == 0 {
		return f, errors.New("%s: empty record", f.Name)
	}
	if !bytes.Equal(h, keccak256Bytes(f.Record)) {
		return f, errors.Wrap(ErrHashMismatch, "%s", f.Name)
	}
	rec, n, err := record.Decode(f.Record)
	if err != nil {
		return f, errors.Wrap(err, "%s", f.Name)
	}
	if n != len(f.Record) {
		return f, errors.New("%s: %d trailing bytes after record", f.Name, len(f.Record)-n)
	}
	if _, err := record.DecodeCode(rec.Code); err != nil {
		return f, errors.Wrap(err, "%s: code", f.Name)
	}
	f.ID = rec.ID
	f.Hash = "0x" + hex.EncodeToString(h)
	return f, nil
}

// VerifyUCXSourceHash checks whether an artifact was compiled from source.
func VerifyUCXSourceHash(a *UCXArtifact, source []byte) error {
	if a == nil {
		return errors.New("nil ucx artifact")
	}
	want := keccak256Hex(source)
	got := strings.ToLower(strings.TrimSpace(a.SourceHash))
	if got != want {
		return errors.Wrap(ErrHashMismatch, "ucx source: got=%s want=%s", a.SourceHash, want)
	}
	return nil
}

// Records decodes the records of a .ucx artifact or, for any other input,
// of a plain concatenation of function records.
func Records(data []byte) ([]*record.Record, error) {
	if !IsUCX(data) {
		return record.Split(data)
	}
	a, err := DecodeUCX(data)
	if err != nil {
		return nil, err
	}
	return record.Split(a.Records())
}
