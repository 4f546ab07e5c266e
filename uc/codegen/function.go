package codegen

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nikandfor/tlog"

	"github.com/tos-network/ucc/uc/ast"
	"github.com/tos-network/ucc/uc/cfg"
	"github.com/tos-network/ucc/uc/diag"
	"github.com/tos-network/ucc/uc/record"
)

// Function holds the per-function state of one translation: the text pool,
// the link table, the local slot counter and the block graph.
type Function struct {
	s   *Session
	src *ast.Function

	ID     int
	HighID bool

	// Dump receives the block graphs and the jump layout when not nil.
	Dump io.Writer

	params int
	locals int

	text    []byte
	offsets map[string]int
	sorted  []string

	links   []int
	linkIdx map[linkKey]int

	g      *cfg.Graph
	blocks []*cfg.Block
	labels map[string]*cfg.Block
	placed map[*cfg.Block]bool
	loops  loopStack

	// label names in placement order, and goto targets in translation order
	placeLog []string
	gotoLog  []string

	folded map[*ast.Expr]bool
}

type linkKey struct {
	name string
	id   int
}

// NewFunction prepares fn for translation: it assigns the function number
// and fills the text pool with the strings the body refers to, in source
// order, so prefix literals can resolve against strings used later.
func NewFunction(s *Session, fn *ast.Function) *Function {
	f := &Function{
		s:       s,
		src:     fn,
		params:  len(fn.Params),
		locals:  fn.Locals,
		offsets: map[string]int{},
		linkIdx: map[linkKey]int{},
		g:       cfg.NewGraph(),
		labels:  map[string]*cfg.Block{},
		placed:  map[*cfg.Block]bool{},
		folded:  map[*ast.Expr]bool{},
	}
	f.ID, f.HighID = s.AssignID(fn)

	for _, t := range fn.Strings {
		f.AddString(t)
	}
	collectStmt(f, fn.Body)

	for _, l := range fn.Labels {
		if _, ok := f.labels[l]; !ok {
			f.labels[l] = f.g.NewBlock()
		}
	}
	return f
}

func (f *Function) Name() string { return f.src.Name }

// Locals is the number of local slots, hidden temporaries included.
func (f *Function) Locals() int { return f.locals }

// Text returns the text pool.
func (f *Function) Text() []byte { return f.text }

// Links returns the function numbers of the link table, by link index.
func (f *Function) Links() []int { return f.links }

// AddString returns the pool offset of text, appending it NUL-terminated the
// first time it is seen.
func (f *Function) AddString(text string) int {
	if off, ok := f.offsets[text]; ok {
		return off
	}
	off := len(f.text)
	f.text = append(f.text, text...)
	f.text = append(f.text, 0)
	f.offsets[text] = off

	i := sort.SearchStrings(f.sorted, text)
	f.sorted = append(f.sorted, "")
	copy(f.sorted[i+1:], f.sorted[i:])
	f.sorted[i] = text
	return off
}

// FindStringPrefix returns the offset of the one pooled string starting with
// prefix. It reports an error and returns 0 when none matches, and reports
// an error but still returns the first match when several do.
func (f *Function) FindStringPrefix(line, col int, prefix string) int {
	i := sort.SearchStrings(f.sorted, prefix)
	if i == len(f.sorted) || !strings.HasPrefix(f.sorted[i], prefix) {
		f.s.errorf(line, col, diag.CodeStringPrefix, "Prefix '%s' matches no string in this function", prefix)
		return 0
	}
	if i+1 < len(f.sorted) && strings.HasPrefix(f.sorted[i+1], prefix) {
		f.s.errorf(line, col, diag.CodeStringPrefix, "Prefix '%s' matches more than one string", prefix)
	}
	return f.offsets[f.sorted[i]]
}

// link returns the link table index of fr, adding it on first use.
func (f *Function) link(fr *ast.FuncRef) int {
	k := linkKey{name: fr.Name, id: fr.ID}
	if i, ok := f.linkIdx[k]; ok {
		return i
	}
	i := len(f.links)
	f.links = append(f.links, fr.ID)
	f.linkIdx[k] = i
	return i
}

// newTemp allocates a hidden local after the declared ones.
func (f *Function) newTemp(name string) *ast.Var {
	v := &ast.Var{Name: name, Storage: ast.StorageLocal, Slot: f.params + f.locals}
	f.locals++
	return v
}

// push appends b to the layout order.
func (f *Function) push(b *cfg.Block) *cfg.Block {
	f.blocks = append(f.blocks, b)
	f.placed[b] = true
	return b
}

func (f *Function) newBlock() *cfg.Block { return f.push(f.g.NewBlock()) }

func (f *Function) end() *cfg.Block { return f.g.Exit }

// Translate builds the raw block graph of the body.
func (f *Function) Translate() []*cfg.Block {
	curr := f.newBlock()
	f.g.Entry.SetTaken(curr)
	if f.src.Body != nil {
		f.stmt(f.src.Body, &curr)
	}

	names := make([]string, 0, len(f.labels))
	for name := range f.labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		l := f.labels[name]
		if f.placed[l] || l.NoParents() {
			continue
		}
		f.s.errorf(f.src.Line, 0, diag.CodeUndeclaredLabel, "Label '%s' is referenced but never placed", name)
		f.push(l).SetTaken(f.end())
	}
	return f.blocks
}

func (f *Function) labelBlocks() []*cfg.Block {
	out := make([]*cfg.Block, 0, len(f.labels))
	for _, l := range f.labels {
		out = append(out, l)
	}
	return out
}

// Generate translates, optimizes and lays out the function and returns its
// record. Problems in the body are reported to the session; the record is
// still produced so every error of a run surfaces at once.
func (f *Function) Generate(ctx context.Context) (rec *record.Record, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "function", "name", f.src.Name, "id", f.ID)
	defer tr.Finish("err", &err)

	blocks := f.Translate()
	if tr.If("dump_cfg") {
		tr.Printw("raw cfg", "blocks", len(blocks), "dump", cfg.DumpString(blocks))
	}
	if f.Dump != nil {
		fmt.Fprintf(f.Dump, "== %s (%#x) raw\n", f.src.Name, f.ID)
		cfg.Dump(f.Dump, blocks)
	}

	blocks = cfg.Prune(f.g, blocks, f.labelBlocks())
	blocks, st := cfg.Optimize(f.g, blocks, f.src.Returns)
	tr.Printw("optimized", "blocks", len(blocks), "rounds", st.Rounds, "jump_changes", st.JumpChanges, "dead_removed", st.DeadRemoved)
	if tr.If("dump_cfg") {
		tr.Printw("optimized cfg", "dump", cfg.DumpString(blocks))
	}
	if f.Dump != nil {
		fmt.Fprintf(f.Dump, "== %s (%#x) optimized\n", f.src.Name, f.ID)
		cfg.Dump(f.Dump, blocks)
	}

	layout, err := cfg.Linearize(blocks, f.src.Returns)
	if err != nil {
		f.s.errorf(f.src.Line, 0, diag.CodeInternal, "function '%s': %v", f.src.Name, err)
		return nil, err
	}
	if tr.If("dump_layout") {
		tr.Printw("layout", "offsets", layout.Offsets, "passes", layout.Passes, "implied_return", layout.Implied)
	}
	if f.Dump != nil {
		fmt.Fprintf(f.Dump, "== %s (%#x) layout offsets=%v passes=%d implied=%v\n",
			f.src.Name, f.ID, layout.Offsets, layout.Passes, layout.Implied)
	}

	params := f.params
	if f.src.Kind == ast.KindShape || f.src.Kind == ast.KindObject {
		params++
	}
	rec = record.New(f.ID, f.HighID, f.text, params, f.locals, f.links, layout.Code)
	if lerr := rec.Limits(); lerr != nil {
		f.s.errorf(f.src.Line, 0, diag.CodeSerializationLimits, "function '%s': %v", f.src.Name, lerr)
	}
	return rec, nil
}

// collectStmt pools the string literals of s in source order.
func collectStmt(f *Function, s *ast.Stmt) {
	if s == nil {
		return
	}
	collectExpr(f, s.Expr)
	collectExpr(f, s.Target)
	for _, t := range s.Strings {
		f.AddString(t)
	}
	for _, m := range s.Msgs {
		collectExpr(f, m)
	}
	for _, c := range s.Stmts {
		collectStmt(f, c)
	}
	for _, a := range s.Arms {
		if a == nil {
			continue
		}
		collectExpr(f, a.Value)
		collectStmt(f, a.Body)
	}
	for _, c := range []*ast.Stmt{s.Then, s.Else, s.Body} {
		collectStmt(f, c)
	}
	for _, c := range s.Cases {
		collectStmt(f, c)
	}
	collectStmt(f, s.Nobreak)
	collectStmt(f, s.Catch)
}

func collectExpr(f *Function, e *ast.Expr) {
	if e == nil {
		return
	}
	if e.Kind == ast.ExprString {
		f.AddString(e.Text)
	}
	for _, c := range []*ast.Expr{e.Index, e.Left, e.Right, e.Operand, e.Item, e.Fn} {
		collectExpr(f, c)
	}
	for _, c := range e.Elems {
		collectExpr(f, c)
	}
	for _, c := range e.Args {
		collectExpr(f, c)
	}
}
