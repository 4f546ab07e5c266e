package diag

import "fmt"

const (
	CodeUndeclaredLabel     = "UCC1001"
	CodeUndeclaredLoop      = "UCC1002"
	CodeDuplicateDefault    = "UCC1003"
	CodeInfiniteLoop        = "UCC1004"
	CodeNotAssignable       = "UCC1005"
	CodeBreakOutsideLoop    = "UCC1006"
	CodeCallArity           = "UCC1007"
	CodeNoReturnValue       = "UCC1008"
	CodeDuplicateFunction   = "UCC1009"
	CodeMissingThis         = "UCC1010"
	CodeStringPrefix        = "UCC1011"
	CodeConstructorArity    = "UCC1012"
	CodeDivisionByZero      = "UCC2001"
	CodeUnsupportedConstOp  = "UCC2002"
	CodeUnreachableNobreak  = "UCC3001"
	CodeAutoNumber          = "UCC3002"
	CodeConstructorMissing  = "UCC3003"
	CodeInterchangeShape    = "UCC4001"
	CodeInterchangeUnknown  = "UCC4002"
	CodeSerializationLimits = "UCC5001"
	CodeInternal            = "UCC9001"
)

// Severity distinguishes errors, which fail a compilation run, from warnings.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Position describes a line/column position in a source file.
type Position struct {
	Line   int
	Column int
}

// Span describes a source range.
type Span struct {
	File  string
	Start Position
	End   Position
}

// Diagnostic is a structured compile-time error or warning.
type Diagnostic struct {
	Code     string
	Severity Severity
	Message  string
	Span     Span
}

func (d Diagnostic) Error() string {
	prefix := ""
	if d.Severity == SeverityWarning {
		prefix = "warning: "
	}
	if d.Span.File == "" || d.Span.Start.Line <= 0 {
		return fmt.Sprintf("%s[%s] %s", prefix, d.Code, d.Message)
	}
	if d.Span.Start.Column <= 0 {
		return fmt.Sprintf("%s:%d: %s[%s] %s", d.Span.File, d.Span.Start.Line, prefix, d.Code, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s[%s] %s",
		d.Span.File,
		d.Span.Start.Line,
		d.Span.Start.Column,
		prefix,
		d.Code,
		d.Message,
	)
}

// Diagnostics is an ordered diagnostic list.
type Diagnostics []Diagnostic

func (ds Diagnostics) Error() string {
	errs := ds.Errors()
	if len(errs) == 0 {
		return ""
	}
	if len(errs) == 1 {
		return errs[0].Error()
	}
	return fmt.Sprintf("%s (and %d more error(s))", errs[0].Error(), len(errs)-1)
}

func (ds Diagnostics) HasErrors() bool { return len(ds.Errors()) > 0 }

// Errors returns the error-severity subset, in order.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns the warning-severity subset, in order.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// Count returns how many diagnostics carry code.
func (ds Diagnostics) Count(code string) int {
	n := 0
	for _, d := range ds {
		if d.Code == code {
			n++
		}
	}
	return n
}

// Sink records diagnostics in report order. Reporting never interrupts the
// caller; the error count decides whether a run produces output.
type Sink struct {
	list   Diagnostics
	errors int
}

func (s *Sink) Errorf(span Span, code, format string, args ...interface{}) {
	s.list = append(s.list, Diagnostic{Code: code, Severity: SeverityError, Message: fmt.Sprintf(format, args...), Span: span})
	s.errors++
}

func (s *Sink) Warnf(span Span, code, format string, args ...interface{}) {
	s.list = append(s.list, Diagnostic{Code: code, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Span: span})
}

// ErrorCount is the number of error-severity diagnostics reported so far.
func (s *Sink) ErrorCount() int { return s.errors }

// Diagnostics returns a copy of everything reported so far.
func (s *Sink) Diagnostics() Diagnostics {
	out := make(Diagnostics, len(s.list))
	copy(out, s.list)
	return out
}

// Err returns the recorded diagnostics as an error when any of them is an
// error, nil otherwise.
func (s *Sink) Err() error {
	if s.errors == 0 {
		return nil
	}
	return s.Diagnostics()
}
