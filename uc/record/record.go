// Package record encodes and decodes Usecode function records: the header,
// the text pool, the parameter, local and link counts, the link table and the
// code.
package record

import (
	"encoding/binary"

	"github.com/nikandfor/errors"
)

// Header markers selecting the extended forms.
const (
	ExtMarker  = 0xffff // 2-byte id, 4-byte lengths
	HighMarker = 0xfffe // 4-byte id, 4-byte lengths
)

type Header struct {
	ID       int
	Wide     bool // extended form with 4-byte lengths
	HighID   bool // 4-byte function id; implies Wide
	TotalLen int  // bytes following the length field
	TextLen  int
}

// Size is the encoded header length.
func (h Header) Size() int {
	switch {
	case h.HighID:
		return 2 + 4 + 4 + 4
	case h.Wide:
		return 2 + 2 + 4 + 4
	}
	return 2 + 2 + 2
}

// Record is one serialized function.
type Record struct {
	Header

	Text   []byte
	Params int // receiver included for shape and object functions
	Locals int
	Links  []int
	Code   []byte
}

// New builds a record and picks its header form: the extended form when the
// total length overflows 16 bits, the id needs 32 bits or collides with a
// header marker.
func New(id int, high bool, text []byte, params, locals int, links []int, code []byte) *Record {
	r := &Record{
		Text:   text,
		Params: params,
		Locals: locals,
		Links:  links,
		Code:   code,
	}
	total := 2 + len(text) + 2 + 2 + 2 + 2*len(links) + len(code)
	r.ID = id
	r.HighID = high
	r.Wide = !fits16(total) || high || id == ExtMarker || id == HighMarker
	if r.Wide {
		total += 2
	}
	r.TotalLen = total
	r.TextLen = len(text)
	return r
}

func fits16(v int) bool { return v>>16 == 0 || v>>16 == -1 }

// Limits reports the first field that does not fit its encoded width.
func (r *Record) Limits() error {
	if !r.HighID && (r.ID < 0 || r.ID > 0xffff) {
		return errors.New("function id %#x needs the 32-bit form", r.ID)
	}
	if r.Params < 0 || r.Params > 0xffff {
		return errors.New("parameter count %d does not fit 16 bits", r.Params)
	}
	if r.Locals < 0 || r.Locals > 0xffff {
		return errors.New("local count %d does not fit 16 bits", r.Locals)
	}
	if len(r.Links) > 0xffff {
		return errors.New("link count %d does not fit 16 bits", len(r.Links))
	}
	for i, l := range r.Links {
		if l < 0 || l > 0xffff {
			return errors.New("link %d: function %#x does not fit 16 bits", i, l)
		}
	}
	return nil
}

// Size is the full encoded length, header included.
func (r *Record) Size() int {
	textLen := 2
	if r.Wide {
		textLen = 4
	}
	return r.Header.Size() - textLen + r.TotalLen
}

// AppendTo encodes r after dst. All fields are little-endian.
func (r *Record) AppendTo(dst []byte) []byte {
	le := binary.LittleEndian
	switch {
	case r.HighID:
		dst = le.AppendUint16(dst, HighMarker)
		dst = le.AppendUint32(dst, uint32(r.ID))
		dst = le.AppendUint32(dst, uint32(r.TotalLen))
		dst = le.AppendUint32(dst, uint32(r.TextLen))
	case r.Wide:
		dst = le.AppendUint16(dst, ExtMarker)
		dst = le.AppendUint16(dst, uint16(r.ID))
		dst = le.AppendUint32(dst, uint32(r.TotalLen))
		dst = le.AppendUint32(dst, uint32(r.TextLen))
	default:
		dst = le.AppendUint16(dst, uint16(r.ID))
		dst = le.AppendUint16(dst, uint16(r.TotalLen))
		dst = le.AppendUint16(dst, uint16(r.TextLen))
	}
	dst = append(dst, r.Text...)
	dst = le.AppendUint16(dst, uint16(r.Params))
	dst = le.AppendUint16(dst, uint16(r.Locals))
	dst = le.AppendUint16(dst, uint16(len(r.Links)))
	for _, l := range r.Links {
		dst = le.AppendUint16(dst, uint16(l))
	}
	return append(dst, r.Code...)
}

func (r *Record) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, r.Size()))
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) need(n int, what string) error {
	if n < 0 || r.off+n > len(r.buf) {
		return errors.New("%s at %d: need %d bytes, have %d", what, r.off, n, len(r.buf)-r.off)
	}
	return nil
}

func (r *reader) u16(what string) (int, error) {
	if err := r.need(2, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return int(v), nil
}

func (r *reader) u32(what string) (int, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return int(v), nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	out := append([]byte(nil), r.buf[r.off:r.off+n]...)
	r.off += n
	return out, nil
}

// Decode reads one record from the front of data and returns it with the
// number of bytes consumed.
func Decode(data []byte) (*Record, int, error) {
	rd := &reader{buf: data}
	rec := &Record{}

	first, err := rd.u16("function id")
	if err != nil {
		return nil, 0, err
	}
	switch first {
	case HighMarker:
		rec.Wide, rec.HighID = true, true
		if rec.ID, err = rd.u32("function id"); err != nil {
			return nil, 0, err
		}
	case ExtMarker:
		rec.Wide = true
		if rec.ID, err = rd.u16("function id"); err != nil {
			return nil, 0, err
		}
	default:
		rec.ID = first
	}

	if rec.Wide {
		rec.TotalLen, err = rd.u32("total length")
	} else {
		rec.TotalLen, err = rd.u16("total length")
	}
	if err != nil {
		return nil, 0, err
	}
	bodyStart := rd.off
	if err := rd.need(rec.TotalLen, "function body"); err != nil {
		return nil, 0, err
	}
	body := &reader{buf: data[:bodyStart+rec.TotalLen], off: bodyStart}

	if rec.Wide {
		rec.TextLen, err = body.u32("text length")
	} else {
		rec.TextLen, err = body.u16("text length")
	}
	if err != nil {
		return nil, 0, err
	}
	if rec.Text, err = body.bytes(rec.TextLen, "text"); err != nil {
		return nil, 0, err
	}
	if rec.Params, err = body.u16("parameter count"); err != nil {
		return nil, 0, err
	}
	if rec.Locals, err = body.u16("local count"); err != nil {
		return nil, 0, err
	}
	nlinks, err := body.u16("link count")
	if err != nil {
		return nil, 0, err
	}
	rec.Links = make([]int, nlinks)
	for i := range rec.Links {
		if rec.Links[i], err = body.u16("link"); err != nil {
			return nil, 0, err
		}
	}
	if rec.Code, err = body.bytes(len(body.buf)-body.off, "code"); err != nil {
		return nil, 0, err
	}
	return rec, body.off, nil
}

// Split decodes a concatenation of records.
func Split(data []byte) ([]*Record, error) {
	var out []*Record
	for off := 0; off < len(data); {
		rec, n, err := Decode(data[off:])
		if err != nil {
			return nil, errors.Wrap(err, "record %d at offset %d", len(out), off)
		}
		out = append(out, rec)
		off += n
	}
	return out, nil
}

// Strings returns the NUL-terminated entries of the text pool keyed by
// offset.
func (r *Record) Strings() map[int]string {
	out := map[int]string{}
	start := 0
	for i, c := range r.Text {
		if c == 0 {
			out[start] = string(r.Text[start:i])
			start = i + 1
		}
	}
	return out
}
