package record

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tos-network/ucc/uc/opcode"
)

func TestCompactRecord(t *testing.T) {
	r := New(0x123, false, []byte("hi\x00"), 1, 2, []int{0x400}, []byte{byte(opcode.Ret)})
	if r.Wide || r.HighID {
		t.Fatalf("form: wide=%v high=%v", r.Wide, r.HighID)
	}
	want := []byte{
		0x23, 0x01, // id
		0x0e, 0x00, // total
		0x03, 0x00, // text length
		'h', 'i', 0,
		0x01, 0x00, // params
		0x02, 0x00, // locals
		0x01, 0x00, 0x00, 0x04, // links
		byte(opcode.Ret),
	}
	got := r.Bytes()
	if !bytes.Equal(got, want) {
		t.Fatalf("bytes:\n got=% x\nwant=% x", got, want)
	}
	if r.Size() != len(want) {
		t.Fatalf("size: got=%d want=%d", r.Size(), len(want))
	}

	back, n, err := Decode(append(got, 0xaa))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(want) {
		t.Fatalf("consumed: got=%d want=%d", n, len(want))
	}
	if back.ID != 0x123 || back.Params != 1 || back.Locals != 2 || len(back.Links) != 1 || back.Links[0] != 0x400 {
		t.Fatalf("decoded: %+v", back)
	}
	if !bytes.Equal(back.Code, r.Code) || !bytes.Equal(back.Text, r.Text) {
		t.Fatalf("decoded payload: text=%q code=% x", back.Text, back.Code)
	}
	if s := back.Strings(); s[0] != "hi" {
		t.Fatalf("strings: got=%q", s)
	}
}

func TestHighIDRecord(t *testing.T) {
	r := New(0x12345, true, nil, 0, 0, nil, []byte{byte(opcode.Ret)})
	if !r.Wide || !r.HighID {
		t.Fatalf("form: wide=%v high=%v", r.Wide, r.HighID)
	}
	want := []byte{
		0xfe, 0xff,
		0x45, 0x23, 0x01, 0x00,
		0x0b, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		byte(opcode.Ret),
	}
	if got := r.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("bytes:\n got=% x\nwant=% x", got, want)
	}
	back, n, err := Decode(want)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.ID != 0x12345 || !back.HighID || n != len(want) {
		t.Fatalf("decoded: id=%#x high=%v n=%d", back.ID, back.HighID, n)
	}
}

func TestWideByLength(t *testing.T) {
	text := make([]byte, 0x10000)
	r := New(0x400, false, text, 0, 0, nil, nil)
	if !r.Wide || r.HighID {
		t.Fatalf("form: wide=%v high=%v", r.Wide, r.HighID)
	}
	data := r.Bytes()
	if data[0] != 0xff || data[1] != 0xff {
		t.Fatalf("marker: got=% x", data[:2])
	}
	back, n, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.ID != 0x400 || back.TextLen != 0x10000 || n != len(data) {
		t.Fatalf("decoded: id=%#x textlen=%#x n=%d len=%d", back.ID, back.TextLen, n, len(data))
	}
}

func TestReservedIDForcesWide(t *testing.T) {
	for _, id := range []int{ExtMarker, HighMarker} {
		if r := New(id, false, nil, 0, 0, nil, nil); !r.Wide {
			t.Fatalf("id %#x must use the extended header", id)
		}
	}
}

func TestSplit(t *testing.T) {
	a := New(1, false, nil, 0, 0, nil, []byte{byte(opcode.Ret)})
	b := New(2, false, []byte("x\x00"), 1, 0, nil, []byte{byte(opcode.RetZ)})
	recs, err := Split(append(a.Bytes(), b.Bytes()...))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != 1 || recs[1].ID != 2 {
		t.Fatalf("records: %+v", recs)
	}

	data := b.Bytes()
	_, err = Split(append(a.Bytes(), data[:len(data)-1]...))
	if err == nil || !strings.Contains(err.Error(), "record 1") {
		t.Fatalf("truncated input: got=%v", err)
	}
}

func TestLimits(t *testing.T) {
	if err := New(1, false, nil, 0, 0, []int{0x10000}, nil).Limits(); err == nil {
		t.Fatalf("out of range link accepted")
	}
	if err := New(1, false, nil, 0x10000, 0, nil, nil).Limits(); err == nil {
		t.Fatalf("out of range parameter count accepted")
	}
	if err := New(0x12345, true, nil, 0, 0, nil, nil).Limits(); err != nil {
		t.Fatalf("high id rejected: %v", err)
	}
}

func TestDecodeCode(t *testing.T) {
	code := []byte{
		byte(opcode.PushS), 0x00, 0x00,
		byte(opcode.Jmp), 0xfa, 0xff,
		byte(opcode.Jmp | opcode.WideBit), 0x00, 0x00, 0x00, 0x00,
		byte(opcode.Ret),
	}
	ins, err := DecodeCode(code)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ins) != 4 {
		t.Fatalf("instructions: got=%d want=4", len(ins))
	}
	if ins[1].Op != opcode.Jmp || ins[1].Wide || ins[1].Target != 0 {
		t.Fatalf("short jump: %+v", ins[1])
	}
	if ins[2].Op != opcode.Jmp || !ins[2].Wide || ins[2].Target != 11 || ins[2].Size != 5 {
		t.Fatalf("wide jump: %+v", ins[2])
	}

	var buf bytes.Buffer
	if err := Disasm(&buf, code, map[int]string{0: "hi"}); err != nil {
		t.Fatalf("disasm: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("disasm lines: got=%d\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "0000: PUSHS") || !strings.HasSuffix(lines[0], `; "hi"`) {
		t.Fatalf("line 0: %q", lines[0])
	}
	if !strings.Contains(lines[1], "JMP") || !strings.HasSuffix(lines[1], "-> 0000") {
		t.Fatalf("line 1: %q", lines[1])
	}
	if !strings.Contains(lines[2], "JMP32") {
		t.Fatalf("line 2: %q", lines[2])
	}

	if _, err := DecodeCode([]byte{0x01}); err == nil {
		t.Fatalf("unknown opcode accepted")
	}
	if _, err := DecodeCode([]byte{byte(opcode.PushI), 0x01}); err == nil {
		t.Fatalf("truncated operand accepted")
	}
}
