package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWord4RoundTrip(t *testing.T) {
	assert.Equal(t, byte(0x7F), WordFromByte(0x7F).Byte(), "byte round-trip")
	assert.Equal(t, uint32(0xDEADBEEF), WordFromWord(0xDEADBEEF).Word(), "word round-trip")
	assert.Equal(t, int32(-42), WordFromSignedWord(-42).SignedWord(), "signed word round-trip")
	assert.Equal(t, float32(3.5), WordFromReal(3.5).Real(), "real round-trip")
}

func TestWord4NarrowStoreZeroPads(t *testing.T) {
	w := WordFromByte(0xFF)
	assert.Equal(t, uint32(0x000000FF), w.Word(), "narrow store zero-extends the high bytes")
}

func TestWord4SettersMutateInPlace(t *testing.T) {
	var w Word4
	w.SetWord(12345)
	assert.Equal(t, uint32(12345), w.Word())
	w.SetReal(-1.5)
	assert.Equal(t, float32(-1.5), w.Real())
}
