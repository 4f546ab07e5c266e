// Package opcode describes the Usecode instruction set as the code
// generator sees it: numeric values, mnemonics, fixed operand widths and the
// jump, return and abort classes.
package opcode

import "fmt"

// Op is a Usecode opcode byte. Ops at or above WideBit are either the 32-bit
// operand forms of data instructions (PUSHI32, CALL32, ...) or the 32-bit
// displacement forms of jumps.
type Op uint8

// WideBit is or'ed into a jump opcode whose displacement is 32 bits wide.
const WideBit Op = 0x80

const (
	Invalid Op = 0x00

	LoopTop  Op = 0x02
	Converse Op = 0x04
	Jne      Op = 0x05
	Jmp      Op = 0x06
	Cmps     Op = 0x07

	Add Op = 0x09
	Sub Op = 0x0a
	Div Op = 0x0b
	Mul Op = 0x0c
	Mod Op = 0x0d
	And Op = 0x0e
	Or  Op = 0x0f
	Not Op = 0x10

	Pop       Op = 0x12
	PushTrue  Op = 0x13
	PushFalse Op = 0x14
	CmpGT     Op = 0x16
	CmpLT     Op = 0x17
	CmpGE     Op = 0x18
	CmpLE     Op = 0x19
	CmpNE     Op = 0x1a
	AddSI     Op = 0x1c
	PushS     Op = 0x1d
	ArrC      Op = 0x1e
	PushI     Op = 0x1f
	Push      Op = 0x21
	CmpEQ     Op = 0x22
	Call      Op = 0x24
	Ret       Op = 0x25
	AIdx      Op = 0x26
	Ret2      Op = 0x2c
	RetV      Op = 0x2d
	Loop      Op = 0x2e
	AddSV     Op = 0x2f
	In        Op = 0x30
	Default   Op = 0x31
	RetZ      Op = 0x32
	Say       Op = 0x33
	CallIS    Op = 0x38
	CallI     Op = 0x39

	PushItemRef Op = 0x3e
	Abrt        Op = 0x3f
	ConverseLoc Op = 0x40
	PushF       Op = 0x42
	PopF        Op = 0x43
	PushB       Op = 0x44
	PopArr      Op = 0x46
	CallE       Op = 0x47
	PushEventID Op = 0x48
	ArrA        Op = 0x4a
	PopEventID  Op = 0x4b
	DbgLine     Op = 0x4c
	DbgFunc     Op = 0x4d

	PushStatic Op = 0x50
	PopStatic  Op = 0x51
	CallO      Op = 0x52
	CallInd    Op = 0x53
	PushTHV    Op = 0x54
	PopTHV     Op = 0x55
	CallM      Op = 0x56
	CallMS     Op = 0x57
	ClsCreate  Op = 0x58
	ClassDel   Op = 0x59
	AIdxS      Op = 0x5a
	PopArrS    Op = 0x5b
	LoopTopS   Op = 0x5c
	AIdxTHV    Op = 0x5d
	PopArrTHV  Op = 0x5e
	LoopTopTHV Op = 0x5f
	PushFVar   Op = 0x60
	PopFVar    Op = 0x61
	CallIndex  Op = 0x62
	TryStart   Op = 0x63
	TryEnd     Op = 0x64
	Throw      Op = 0x65
	PushChoice Op = 0x66

	AddSI32   = AddSI | WideBit
	PushS32   = PushS | WideBit
	PushI32   = PushI | WideBit
	Call32    = Call | WideBit
	CallE32   = CallE | WideBit
	DbgFunc32 = DbgFunc | WideBit
)

type info struct {
	name   string
	params int
	jump   bool
}

var table = map[Op]info{
	LoopTop:    {"LOOPTOP", 8, true},
	LoopTopS:   {"LOOPTOPS", 8, true},
	LoopTopTHV: {"LOOPTOPTHV", 8, true},
	Cmps:       {"CMPS", 2, true},
	Default:    {"DEFAULT", 2, true},
	Converse:   {"CONVERSE", 0, true},
	Jmp:        {"JMP", 0, true},
	Jne:        {"JNE", 0, true},
	TryStart:   {"TRYSTART", 0, true},

	Add: {"ADD", 0, false},
	Sub: {"SUB", 0, false},
	Div: {"DIV", 0, false},
	Mul: {"MUL", 0, false},
	Mod: {"MOD", 0, false},
	And: {"AND", 0, false},
	Or:  {"OR", 0, false},
	Not: {"NOT", 0, false},

	Pop:         {"POP", 2, false},
	PushTrue:    {"PUSHTRUE", 0, false},
	PushFalse:   {"PUSHFALSE", 0, false},
	CmpGT:       {"CMPGT", 0, false},
	CmpLT:       {"CMPLT", 0, false},
	CmpGE:       {"CMPGE", 0, false},
	CmpLE:       {"CMPLE", 0, false},
	CmpNE:       {"CMPNE", 0, false},
	CmpEQ:       {"CMPEQ", 0, false},
	AddSI:       {"ADDSI", 2, false},
	PushS:       {"PUSHS", 2, false},
	ArrC:        {"ARRC", 2, false},
	PushI:       {"PUSHI", 2, false},
	Push:        {"PUSH", 2, false},
	Call:        {"CALL", 2, false},
	Ret:         {"RET", 0, false},
	AIdx:        {"AIDX", 2, false},
	Ret2:        {"RET2", 0, false},
	RetV:        {"RETV", 0, false},
	Loop:        {"LOOP", 0, false},
	AddSV:       {"ADDSV", 2, false},
	In:          {"IN", 0, false},
	RetZ:        {"RETZ", 0, false},
	Say:         {"SAY", 0, false},
	CallIS:      {"CALLIS", 3, false},
	CallI:       {"CALLI", 3, false},
	PushItemRef: {"PUSHITEMREF", 0, false},
	Abrt:        {"ABRT", 0, false},
	ConverseLoc: {"CONVERSELOC", 0, false},
	PushF:       {"PUSHF", 2, false},
	PopF:        {"POPF", 2, false},
	PushB:       {"PUSHB", 1, false},
	PopArr:      {"POPARR", 2, false},
	CallE:       {"CALLE", 2, false},
	PushEventID: {"PUSHEVENTID", 0, false},
	ArrA:        {"ARRA", 0, false},
	PopEventID:  {"POPEVENTID", 0, false},
	DbgLine:     {"DBGLINE", 2, false},
	DbgFunc:     {"DBGFUNC", 4, false},
	PushStatic:  {"PUSHSTATIC", 2, false},
	PopStatic:   {"POPSTATIC", 2, false},
	CallO:       {"CALLO", 2, false},
	CallInd:     {"CALLIND", 0, false},
	PushTHV:     {"PUSHTHV", 2, false},
	PopTHV:      {"POPTHV", 2, false},
	CallM:       {"CALLM", 2, false},
	CallMS:      {"CALLMS", 4, false},
	ClsCreate:   {"CLSCREATE", 2, false},
	ClassDel:    {"CLASSDEL", 0, false},
	AIdxS:       {"AIDXS", 2, false},
	PopArrS:     {"POPARRS", 2, false},
	AIdxTHV:     {"AIDXTHV", 2, false},
	PopArrTHV:   {"POPARRTHV", 2, false},
	PushFVar:    {"PUSHFVAR", 0, false},
	PopFVar:     {"POPFVAR", 0, false},
	CallIndex:   {"CALLINDEX", 1, false},
	TryEnd:      {"TRYEND", 0, false},
	Throw:       {"THROW", 0, false},
	PushChoice:  {"PUSHCHOICE", 0, false},

	AddSI32:   {"ADDSI32", 4, false},
	PushS32:   {"PUSHS32", 4, false},
	PushI32:   {"PUSHI32", 4, false},
	Call32:    {"CALL32", 4, false},
	CallE32:   {"CALLE32", 4, false},
	DbgFunc32: {"DBGFUNC32", 6, false},
}

func (op Op) String() string {
	if in, ok := table[op]; ok {
		return in.name
	}
	if base, wide := Split(byte(op)); wide {
		return table[base].name + "32"
	}
	return fmt.Sprintf("OP_%02X", uint8(op))
}

// Known reports whether op is part of the instruction set.
func (op Op) Known() bool {
	_, ok := table[op]
	return ok
}

// IsJump reports whether op is a branch that carries a displacement.
func (op Op) IsJump() bool { return table[op].jump }

// ParamSize is the number of fixed operand bytes that follow the opcode,
// excluding any branch displacement.
func (op Op) ParamSize() int { return table[op].params }

func (op Op) IsReturn() bool {
	return op == Ret || op == Ret2 || op == RetV || op == RetZ
}

func (op Op) IsAbort() bool {
	return op == Abrt || op == Throw
}

// IsCompare reports whether op is one of the six relational/equality ops.
func (op Op) IsCompare() bool {
	switch op {
	case CmpGT, CmpLT, CmpGE, CmpLE, CmpNE, CmpEQ:
		return true
	}
	return false
}

// Negate returns the comparison testing the opposite condition.
func (op Op) Negate() (Op, bool) {
	switch op {
	case CmpGT:
		return CmpLE, true
	case CmpLT:
		return CmpGE, true
	case CmpGE:
		return CmpLT, true
	case CmpLE:
		return CmpGT, true
	case CmpNE:
		return CmpEQ, true
	case CmpEQ:
		return CmpNE, true
	}
	return Invalid, false
}

// Split decodes an opcode byte read from a code stream. For a 32-bit jump it
// returns the base jump op and wide=true.
func Split(b byte) (op Op, wide bool) {
	op = Op(b)
	if _, ok := table[op]; ok {
		return op, false
	}
	if base := op &^ WideBit; op&WideBit != 0 && table[base].jump {
		return base, true
	}
	return op, false
}
