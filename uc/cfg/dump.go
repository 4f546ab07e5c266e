package cfg

import (
	"fmt"
	"io"
	"strings"
)

func (in *Instr) String() string {
	var sb strings.Builder
	sb.WriteString(in.Op.String())
	if in.Wide && in.IsJump() {
		sb.WriteString("32")
	}
	for _, p := range in.Params {
		fmt.Fprintf(&sb, " %02x", p)
	}
	return sb.String()
}

func blockName(b *Block) string {
	switch {
	case b == nil:
		return "-"
	case b == b.g.Entry:
		return "entry"
	case b == b.g.Exit:
		return "exit"
	}
	return fmt.Sprintf("b%d", b.id)
}

// Dump writes one paragraph per block: its name, final index, predecessors
// and successors, followed by the instructions and terminal.
func Dump(w io.Writer, blocks []*Block) {
	for _, b := range blocks {
		preds := make([]string, 0, len(b.preds))
		for _, p := range b.Preds() {
			preds = append(preds, blockName(p))
		}
		fmt.Fprintf(w, "%s idx=%d preds=[%s] taken=%s ntaken=%s\n",
			blockName(b), b.index, strings.Join(preds, ","), blockName(b.Taken()), blockName(b.NTaken()))
		for i := range b.code {
			fmt.Fprintf(w, "\t%s\n", b.code[i].String())
		}
		if b.jump != nil && b.jump.IsJump() {
			fmt.Fprintf(w, "\t%s\n", b.jump.String())
		}
	}
}

// DumpString is Dump into a string.
func DumpString(blocks []*Block) string {
	var sb strings.Builder
	Dump(&sb, blocks)
	return sb.String()
}
