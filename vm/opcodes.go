package vm

import "strings"

// OpCode identifies an instruction mnemonic. Its ordinal is combined with a
// TypeModifier to produce the 6-bit dispatch key described in
// Processor's decode step; see packByte.
type OpCode byte

const (
	OpNope OpCode = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLoad
	OpStore
	OpInput
	OpOutput
	OpJump
	OpJumpAndStore
	OpSkipLower
	OpSkipGreater
	OpSkipEqual
	// OpHalt never appears as a dispatch-key ordinal; HALT is the single
	// sentinel byte 0xFF and never goes through packByte/dispatch decode.
	OpHalt
)

func (o OpCode) String() string {
	if p, ok := opcodeProperties[o]; ok {
		return p.Name
	}
	return "UNKNOWN"
}

// TypeModifier selects which of the four numeric interpretations an
// instruction operates on.
type TypeModifier byte

const (
	TypeByte TypeModifier = iota
	TypeWord
	TypeSignedWord
	TypeReal
)

func (t TypeModifier) String() string {
	switch t {
	case TypeByte:
		return "C"
	case TypeWord:
		return "W"
	case TypeSignedWord:
		return "SW"
	case TypeReal:
		return "R"
	default:
		return "?"
	}
}

// ArgModifier selects how the raw instruction argument resolves to the
// auxiliary register before the handler runs.
type ArgModifier byte

const (
	ArgNone ArgModifier = iota
	ArgRef
	ArgRefRef
)

func (a ArgModifier) String() string {
	switch a {
	case ArgNone:
		return ""
	case ArgRef:
		return "&"
	case ArgRefRef:
		return "&&"
	default:
		return "?"
	}
}

// ProcessorState is the Processor's lifecycle state.
type ProcessorState byte

const (
	StateStopped ProcessorState = iota
	StateRunning
	StatePausedByIO
	StatePaused
)

func (s ProcessorState) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateRunning:
		return "RUNNING"
	case StatePausedByIO:
		return "PAUSED_BY_IO"
	case StatePaused:
		return "PAUSED"
	default:
		return "?"
	}
}

// OpCodeProperties describes what source-level variants an opcode accepts.
type OpCodeProperties struct {
	Name           string
	AllowedTypes   []TypeModifier
	AllowedArgMods []ArgModifier
	ArgRequired    bool
	ArgAvailable   bool
}

func (p OpCodeProperties) allowsType(t TypeModifier) bool {
	for _, x := range p.AllowedTypes {
		if x == t {
			return true
		}
	}
	return false
}

func (p OpCodeProperties) allowsArgMod(a ArgModifier) bool {
	for _, x := range p.AllowedArgMods {
		if x == a {
			return true
		}
	}
	return false
}

// defaultType picks SW when allowed, else W, matching the assembler's
// default-type-modifier rule when a source line omits one.
func (p OpCodeProperties) defaultType() (TypeModifier, bool) {
	if p.allowsType(TypeSignedWord) {
		return TypeSignedWord, true
	}
	if p.allowsType(TypeWord) {
		return TypeWord, true
	}
	return 0, false
}

var allTypes = []TypeModifier{TypeByte, TypeWord, TypeSignedWord, TypeReal}

// opcodeProperties matches original_source's OPCODE_PROPERTIES table
// exactly. NOPE allows an (optional) argument despite never reading it
// in NONE/REF form during execution: it is how a label-only data slot
// ("label: 0") attaches an initial value without an explicit mnemonic.
var opcodeProperties = map[OpCode]OpCodeProperties{
	OpNope: {
		Name: "NOPE", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone},
		ArgRequired: false, ArgAvailable: true,
	},
	OpAdd: {
		Name: "ADD", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone, ArgRef, ArgRefRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpSub: {
		Name: "SUB", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone, ArgRef, ArgRefRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpMul: {
		Name: "MUL", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone, ArgRef, ArgRefRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpDiv: {
		Name: "DIV", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone, ArgRef, ArgRefRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpMod: {
		Name: "MOD", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone, ArgRef, ArgRefRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpLoad: {
		Name: "LOAD", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone, ArgRef, ArgRefRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpStore: {
		Name: "STORE", AllowedTypes: []TypeModifier{TypeWord}, AllowedArgMods: []ArgModifier{ArgNone, ArgRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpInput: {
		Name: "INPUT", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone},
		ArgRequired: false, ArgAvailable: false,
	},
	OpOutput: {
		Name: "OUTPUT", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone},
		ArgRequired: false, ArgAvailable: false,
	},
	OpJump: {
		Name: "JUMP", AllowedTypes: []TypeModifier{TypeWord}, AllowedArgMods: []ArgModifier{ArgNone, ArgRef, ArgRefRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpSkipLower: {
		Name: "SKIPLO", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone, ArgRef, ArgRefRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpSkipGreater: {
		Name: "SKIPGT", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone, ArgRef, ArgRefRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpSkipEqual: {
		Name: "SKIPEQ", AllowedTypes: allTypes, AllowedArgMods: []ArgModifier{ArgNone, ArgRef, ArgRefRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpJumpAndStore: {
		Name: "JNS", AllowedTypes: []TypeModifier{TypeWord}, AllowedArgMods: []ArgModifier{ArgNone, ArgRef, ArgRefRef},
		ArgRequired: true, ArgAvailable: true,
	},
	OpHalt: {
		Name: "HALT", AllowedTypes: nil, AllowedArgMods: []ArgModifier{ArgNone},
		ArgRequired: false, ArgAvailable: false,
	},
}

var opcodeByName map[string]OpCode

func init() {
	opcodeByName = make(map[string]OpCode, len(opcodeProperties))
	for op, p := range opcodeProperties {
		opcodeByName[p.Name] = op
	}
}

func lookupOpcode(tok string) (OpCode, bool) {
	op, ok := opcodeByName[strings.ToUpper(tok)]
	return op, ok
}

func lookupTypeModifier(tok string) (TypeModifier, bool) {
	switch strings.ToUpper(tok) {
	case "C":
		return TypeByte, true
	case "W":
		return TypeWord, true
	case "SW":
		return TypeSignedWord, true
	case "R":
		return TypeReal, true
	default:
		return 0, false
	}
}

func lookupArgModifier(tok string) (ArgModifier, bool) {
	switch tok {
	case "&":
		return ArgRef, true
	case "&&":
		return ArgRefRef, true
	default:
		return 0, false
	}
}

// haltByte is the single sentinel byte that bypasses the normal
// (opcode,type)/arg-modifier decode entirely.
const haltByte byte = 0xFF

// packByte assembles the 8-bit instruction opcode byte: bits 7..2 jointly
// enumerate the (opcode, type) pair, bits 1..0 carry the argument modifier.
// HALT is always the sentinel regardless of the type/arg modifier passed in.
func packByte(op OpCode, t TypeModifier, a ArgModifier) byte {
	if op == OpHalt {
		return haltByte
	}
	return byte(op)<<4 | byte(t)<<2 | byte(a)
}

// dispatchKey returns the top 6 bits of an opcode byte built from (op,type),
// the key the Processor's handler table is indexed by.
func dispatchKey(op OpCode, t TypeModifier) byte {
	return byte(op)<<4 | byte(t)<<2
}
