package vm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fiveByteProgram(records ...[5]byte) []byte {
	out := make([]byte, 0, len(records)*5)
	for _, r := range records {
		out = append(out, r[:]...)
	}
	return out
}

func TestMemoryManagerLoadRejectsBadLength(t *testing.T) {
	m := NewMemoryManager()
	err := m.Load([]byte{1, 2, 3})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadImage))
}

func TestMemoryManagerLoadAndReadInstruction(t *testing.T) {
	m := NewMemoryManager()
	bc := fiveByteProgram([5]byte{byte(OpNope) << 4, 0, 0, 0, 0})
	assert.NoError(t, m.Load(bc))
	assert.Equal(t, 1, m.Size())

	op, arg, err := m.ReadInstruction(0)
	assert.NoError(t, err)
	assert.Equal(t, byte(OpNope)<<4, op)
	assert.Equal(t, Word4{}, arg)

	_, _, err = m.ReadInstruction(1)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestMemoryManagerReadArgumentIsTolerant(t *testing.T) {
	m := NewMemoryManager()
	assert.Equal(t, Word4{}, m.ReadArgument(999), "reading past the loaded size returns zero, never an error")
}

func TestMemoryManagerWriteGrowsArrays(t *testing.T) {
	m := NewMemoryManager()
	m.WriteInstruction(0x10, WordFromWord(7), 3)
	assert.Equal(t, 4, m.Size(), "writing at address 3 grows both arrays to addr+1")
	assert.Equal(t, Word4{}, m.ReadArgument(0))
	assert.Equal(t, uint32(7), m.ReadArgument(3).Word())
}

func TestMemoryManagerWriteArgumentOutOfRange(t *testing.T) {
	m := NewMemoryManager()
	err := m.WriteArgument(WordFromWord(1), MaxInstructions)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestMemoryManagerResetData(t *testing.T) {
	m := NewMemoryManager()
	bc := fiveByteProgram([5]byte{0, 9, 0, 0, 0})
	assert.NoError(t, m.Load(bc))

	assert.NoError(t, m.WriteArgument(WordFromWord(42), 0))
	assert.Equal(t, uint32(42), m.ReadArgument(0).Word())

	m.ResetData()
	assert.Equal(t, uint32(9), m.ReadArgument(0).Word(), "ResetData restores the as-loaded snapshot")
}
