package vm

import (
	"fmt"
	"strings"
)

// Assembler turns register-machine source text into a flat bytecode image.
// It holds no state of its own; each call to Compile/CompileWithDebug/
// TestSource runs an independent two-pass assembly.
type Assembler struct{}

// NewAssembler returns a ready-to-use Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Compile assembles source into bytecode. Fails atomically: if any line has
// a diagnostic, no bytecode is returned at all.
func (a *Assembler) Compile(source string) ([]byte, error) {
	bytecode, _, errs := a.assemble(source)
	if len(errs) > 0 {
		return nil, &CompileError{Errors: errs}
	}
	return bytecode, nil
}

// CompileWithDebug assembles source into bytecode alongside a source-line
// to instruction-address map, for host tooling like the debugger that needs
// to translate a breakpoint line into a memory address.
func (a *Assembler) CompileWithDebug(source string) ([]byte, map[int]Address, error) {
	bytecode, debugMap, errs := a.assemble(source)
	if len(errs) > 0 {
		return nil, nil, &CompileError{Errors: errs}
	}
	return bytecode, debugMap, nil
}

// TestSource runs the same two assembly passes as Compile but never fails:
// it returns every diagnostic collected, or an empty slice if the source is
// clean. Useful for an editor wanting to underline every bad line at once
// instead of stopping at the first one.
func (a *Assembler) TestSource(source string) []error {
	_, _, errs := a.assemble(source)
	return errs
}

// assemble runs both passes: pass one tokenizes each line, assigns
// addresses, and collects label definitions; pass two resolves label
// references recorded during pass one against the completed label table.
// Diagnostics are accumulated across the whole source rather than stopping
// at the first bad line, so TestSource can report everything at once.
func (a *Assembler) assemble(source string) ([]byte, map[int]Address, []error) {
	var errs []error
	labels := make(map[string]Address)
	var instrs []parsedInstruction
	debugMap := make(map[int]Address)
	addrCounter := 0

	for i, raw := range strings.Split(source, "\n") {
		lineNo := i + 1
		pre := preprocessLine(raw)
		if pre == "" {
			continue
		}

		if addrCounter >= MaxInstructions {
			errs = append(errs, &SemanticError{lineNo, fmt.Sprintf("program exceeds the maximum of %d instructions", MaxInstructions)})
			break
		}

		tokens := tokenize(pre)
		label, rest := splitLabel(tokens)
		if label != "" {
			switch {
			case !isValidLabelName(label):
				errs = append(errs, &SyntaxError{lineNo, fmt.Sprintf("invalid label name %q", label)})
			case labelDefined(labels, label):
				errs = append(errs, &SemanticError{lineNo, fmt.Sprintf("duplicate label %q", label)})
			default:
				labels[strings.ToUpper(label)] = Address(addrCounter)
			}
		}

		pi, err := parseInstructionTokens(rest, lineNo)
		if err != nil {
			errs = append(errs, err)
		}
		pi.line = lineNo
		instrs = append(instrs, pi)
		debugMap[lineNo] = Address(addrCounter)
		addrCounter++
	}

	for i := range instrs {
		if instrs[i].labelRef == "" {
			continue
		}
		target, ok := labels[strings.ToUpper(instrs[i].labelRef)]
		if !ok {
			errs = append(errs, &SemanticError{instrs[i].line, fmt.Sprintf("undefined label %q", instrs[i].labelRef)})
			continue
		}
		instrs[i].operand = WordFromWord(uint32(target))
	}

	if len(errs) > 0 {
		return nil, nil, errs
	}

	bytecode := make([]byte, 0, len(instrs)*5)
	for _, pi := range instrs {
		bytecode = append(bytecode, packByte(pi.opcode, pi.typeMod, pi.argMod))
		bytecode = append(bytecode, pi.operand[:]...)
	}
	return bytecode, debugMap, nil
}

func labelDefined(labels map[string]Address, name string) bool {
	_, ok := labels[strings.ToUpper(name)]
	return ok
}

// parseInstructionTokens decodes the tokens remaining on a source line
// after any "label:" prefix has been removed, producing one parsedInstruction.
func parseInstructionTokens(tokens []string, lineNo int) (parsedInstruction, error) {
	pi := parsedInstruction{line: lineNo}

	if len(tokens) == 0 {
		// Pure label line: advances the address counter and owns a default
		// instruction slot, so a later JUMP/JNS to this label lands
		// somewhere well-defined.
		pi.opcode = OpNope
		pi.typeMod, _ = opcodeProperties[OpNope].defaultType()
		pi.argMod = ArgNone
		return pi, nil
	}

	op, ok := lookupOpcode(tokens[0])
	if !ok {
		// "label: 0" sugar: a line with no recognizable mnemonic at all is
		// a bare data-slot declaration, equivalent to writing "NOPE SW
		// <value>" explicitly. Anything else unrecognized is a genuine
		// unknown-opcode error.
		if len(tokens) != 1 {
			return pi, &SemanticError{lineNo, fmt.Sprintf("unknown opcode %q", tokens[0])}
		}
		nopeType, _ := opcodeProperties[OpNope].defaultType()
		operand, labelRef, operr := parseOperandToken(tokens[0], nopeType, lineNo)
		if operr != nil {
			return pi, &SemanticError{lineNo, fmt.Sprintf("unknown opcode %q", tokens[0])}
		}
		pi.opcode = OpNope
		pi.typeMod = nopeType
		pi.argMod = ArgNone
		pi.operand = operand
		pi.labelRef = labelRef
		return pi, nil
	}
	tokens = tokens[1:]

	props := opcodeProperties[op]
	pi.opcode = op

	if op != OpHalt {
		if len(tokens) > 0 {
			if tm, ok := lookupTypeModifier(tokens[0]); ok {
				if !props.allowsType(tm) {
					return pi, &SemanticError{lineNo, fmt.Sprintf("type modifier %s not valid for %s", tm, props.Name)}
				}
				pi.typeMod = tm
				tokens = tokens[1:]
			} else if def, ok := props.defaultType(); ok {
				pi.typeMod = def
			} else {
				return pi, &SemanticError{lineNo, fmt.Sprintf("%s requires an explicit type modifier", props.Name)}
			}
		} else if def, ok := props.defaultType(); ok {
			pi.typeMod = def
		} else {
			return pi, &SemanticError{lineNo, fmt.Sprintf("%s requires an explicit type modifier", props.Name)}
		}
	}

	pi.argMod = ArgNone
	if len(tokens) > 0 {
		if am, ok := lookupArgModifier(tokens[0]); ok {
			if !props.allowsArgMod(am) {
				return pi, &SemanticError{lineNo, fmt.Sprintf("argument modifier %q not valid for %s", tokens[0], props.Name)}
			}
			pi.argMod = am
			tokens = tokens[1:]
		}
	}

	if len(tokens) > 0 {
		if !props.ArgAvailable {
			return pi, &SemanticError{lineNo, fmt.Sprintf("%s does not accept an argument", props.Name)}
		}
		operand, labelRef, err := parseOperandToken(tokens[0], pi.typeMod, lineNo)
		if err != nil {
			return pi, err
		}
		pi.operand = operand
		pi.labelRef = labelRef
		tokens = tokens[1:]
	} else if props.ArgRequired {
		return pi, &SemanticError{lineNo, fmt.Sprintf("%s requires an argument", props.Name)}
	}

	if len(tokens) > 0 {
		return pi, &SyntaxError{lineNo, fmt.Sprintf("unexpected token %q", tokens[0])}
	}

	return pi, nil
}

// parseOperandToken implements the operand grammar's resolution order:
// character literal, then label identifier, then numeric literal.
func parseOperandToken(tok string, tm TypeModifier, lineNo int) (Word4, string, error) {
	if b, ok := parseCharLiteral(tok); ok {
		return WordFromByte(b), "", nil
	}
	if strings.HasPrefix(tok, "'") {
		return Word4{}, "", &SyntaxError{lineNo, fmt.Sprintf("invalid character literal %q", tok)}
	}
	if isValidLabelName(tok) {
		return Word4{}, tok, nil
	}
	w, matched, err := parseNumericLiteral(tok, tm)
	if err != nil {
		return Word4{}, "", &SyntaxError{lineNo, err.Error()}
	}
	if !matched {
		return Word4{}, "", &SyntaxError{lineNo, fmt.Sprintf("invalid operand %q", tok)}
	}
	return w, "", nil
}
