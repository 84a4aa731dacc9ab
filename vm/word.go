package vm

import (
	"encoding/binary"
	"math"
)

// Word4 is the universal 4-byte little-endian operand container. Any of the
// four numeric types can be stored into it and read back without
// reallocation; narrower stores zero-pad the unused high bytes.
type Word4 [4]byte

// WordFromByte builds a Word4 from an unsigned char, zero-extending the
// remaining three bytes.
func WordFromByte(v byte) Word4 {
	return Word4{v, 0, 0, 0}
}

// WordFromWord builds a Word4 from an unsigned 32-bit word.
func WordFromWord(v uint32) Word4 {
	var w Word4
	binary.LittleEndian.PutUint32(w[:], v)
	return w
}

// WordFromSignedWord builds a Word4 from a two's-complement signed word.
func WordFromSignedWord(v int32) Word4 {
	return WordFromWord(uint32(v))
}

// WordFromReal builds a Word4 from an IEEE-754 single precision float.
func WordFromReal(v float32) Word4 {
	return WordFromWord(math.Float32bits(v))
}

// Byte reinterprets the container as an unsigned char (low byte only).
func (w Word4) Byte() byte { return w[0] }

// Word reinterprets the container as an unsigned 32-bit word.
func (w Word4) Word() uint32 { return binary.LittleEndian.Uint32(w[:]) }

// SignedWord reinterprets the container as a two's-complement signed word.
func (w Word4) SignedWord() int32 { return int32(w.Word()) }

// Real reinterprets the container as an IEEE-754 single precision float.
func (w Word4) Real() float32 { return math.Float32frombits(w.Word()) }

// SetByte overwrites the container with an unsigned char, zero-extended.
func (w *Word4) SetByte(v byte) { *w = WordFromByte(v) }

// SetWord overwrites the container with an unsigned 32-bit word.
func (w *Word4) SetWord(v uint32) { *w = WordFromWord(v) }

// SetSignedWord overwrites the container with a signed word.
func (w *Word4) SetSignedWord(v int32) { *w = WordFromSignedWord(v) }

// SetReal overwrites the container with a float.
func (w *Word4) SetReal(v float32) { *w = WordFromReal(v) }

// numeric is the set of primitive types a Word4 can be reinterpreted as.
// Mirrors the teacher's numeric32 constraint, extended with the byte type
// that this instruction set also treats as a first-class arithmetic type.
type numeric interface {
	byte | uint32 | int32 | float32
}

// wordAs reinterprets a Word4's bit pattern as T.
func wordAs[T numeric](w Word4) T {
	switch any(*new(T)).(type) {
	case byte:
		return any(w.Byte()).(T)
	case uint32:
		return any(w.Word()).(T)
	case int32:
		return any(w.SignedWord()).(T)
	case float32:
		return any(w.Real()).(T)
	default:
		panic("vm: unreachable numeric case")
	}
}

// wordFrom packs a value of T back into a Word4, zero-padding unused bytes.
func wordFrom[T numeric](v T) Word4 {
	switch x := any(v).(type) {
	case byte:
		return WordFromByte(x)
	case uint32:
		return WordFromWord(x)
	case int32:
		return WordFromSignedWord(x)
	case float32:
		return WordFromReal(x)
	default:
		panic("vm: unreachable numeric case")
	}
}
