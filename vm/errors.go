package vm

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, compared with errors.Is, following the teacher's
// package-level errProgramFinished/errSegmentationFault convention.
var (
	ErrBadImage      = errors.New("vm: bad image")
	ErrOutOfRange    = errors.New("vm: address out of range")
	ErrArithmetic    = errors.New("vm: arithmetic error")
	ErrUnknownOpcode = errors.New("vm: unknown opcode")
)

// SyntaxError reports a malformed instruction line: wrong token shape,
// unterminated character literal, invalid numeric literal grammar.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Line %d: %s", e.Line, e.Msg)
}

// SemanticError reports a well-formed instruction that is invalid given the
// opcode's properties: unknown mnemonic, disallowed type or argument
// modifier, missing required argument, unresolved label, duplicate label.
type SemanticError struct {
	Line int
	Msg  string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("Line %d: %s", e.Line, e.Msg)
}

// CompileError aggregates every diagnostic collected across both assembler
// passes. Compile and CompileWithDebug fail atomically: either every
// instruction assembled cleanly or none of the bytecode is returned.
type CompileError struct {
	Errors []error
}

func (e *CompileError) Error() string {
	lines := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		lines[i] = err.Error()
	}
	return strings.Join(lines, "\n")
}

func (e *CompileError) Unwrap() []error { return e.Errors }
