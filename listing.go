package ucc

import (
	"fmt"
	"io"
	"sort"

	"github.com/nikandfor/errors"

	"github.com/tos-network/ucc/uc/record"
)

// WriteListing prints every record: the header fields, the text pool, the
// link table and the disassembled code. names may be shorter than recs.
func WriteListing(w io.Writer, recs []*record.Record, names []string) error {
	for i, r := range recs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := writeRecord(w, r, nameAt(names, i)); err != nil {
			return errors.Wrap(err, "function %#x", r.ID)
		}
	}
	return nil
}

func nameAt(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return ""
}

func writeRecord(w io.Writer, r *record.Record, name string) error {
	form := "compact"
	switch {
	case r.HighID:
		form = "high-id"
	case r.Wide:
		form = "wide"
	}
	title := fmt.Sprintf("function %#x", r.ID)
	if name != "" {
		title += " " + name
	}
	fmt.Fprintf(w, "%s (%s header, %d bytes)\n", title, form, r.Size())
	fmt.Fprintf(w, "  params=%d locals=%d text=%d code=%d\n", r.Params, r.Locals, r.TextLen, len(r.Code))

	text := r.Strings()
	offs := make([]int, 0, len(text))
	for off := range text {
		offs = append(offs, off)
	}
	sort.Ints(offs)
	for _, off := range offs {
		fmt.Fprintf(w, "  .text %04x %q\n", off, text[off])
	}
	for i, l := range r.Links {
		fmt.Fprintf(w, "  .link %d %#04x\n", i, l)
	}
	return record.Disasm(w, r.Code, text)
}
