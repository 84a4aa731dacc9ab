package vm

import "fmt"

type dispatchEntry struct {
	op OpCode
	tm TypeModifier
}

var dispatchReverse map[byte]dispatchEntry

func init() {
	dispatchReverse = make(map[byte]dispatchEntry)
	for op, props := range opcodeProperties {
		if op == OpHalt {
			continue
		}
		for _, tm := range props.AllowedTypes {
			dispatchReverse[dispatchKey(op, tm)] = dispatchEntry{op, tm}
		}
	}
}

// Disassemble decodes a bytecode image back into one text line per
// instruction, the reverse of Assembler.Compile. It does not attempt to
// recover label names — operands referring to addresses are rendered as
// plain decimal numbers.
func Disassemble(bytecode []byte) ([]string, error) {
	if len(bytecode)%5 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 5", ErrBadImage, len(bytecode))
	}

	n := len(bytecode) / 5
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		off := i * 5
		opByte := bytecode[off]
		var arg Word4
		copy(arg[:], bytecode[off+1:off+5])

		if opByte == haltByte {
			lines[i] = "HALT"
			continue
		}

		argMod := ArgModifier(opByte & 0b11)
		key := opByte &^ 0b11
		entry, ok := dispatchReverse[key]
		if !ok {
			return nil, fmt.Errorf("%w: byte 0x%02x at address %d", ErrUnknownOpcode, opByte, i)
		}

		name := opcodeProperties[entry.op].Name
		if argMod == ArgNone {
			lines[i] = fmt.Sprintf("%s %s %d", name, entry.tm, arg.Word())
		} else {
			lines[i] = fmt.Sprintf("%s %s %s %d", name, entry.tm, argMod, arg.Word())
		}
	}
	return lines, nil
}
