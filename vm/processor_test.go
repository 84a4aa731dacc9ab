package vm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingObserver collects every callback fired, for assertions about
// ordering and completeness rather than just final state.
type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) OnIPChanged(ip Address)          { o.record("ip") }
func (o *recordingObserver) OnAccChanged(acc Word4)          { o.record("acc") }
func (o *recordingObserver) OnAuxChanged(aux Word4)          { o.record("aux") }
func (o *recordingObserver) OnMemoryChanged(addr Address)    { o.record("mem") }
func (o *recordingObserver) OnStateChanged(s ProcessorState) { o.record("state:" + s.String()) }

func (o *recordingObserver) record(e string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

// syncIO answers InputRequest synchronously on the calling goroutine and
// records every OutputRequest it receives, for tests that don't need to
// exercise the real suspend/resume race.
type syncIO struct {
	mu      sync.Mutex
	inputs  []Word4
	outputs []Word4
}

func (io *syncIO) nextInput(v Word4) {
	io.mu.Lock()
	io.inputs = append(io.inputs, v)
	io.mu.Unlock()
}

func (io *syncIO) InputRequest(t TypeModifier, cb InputCallback) {
	io.mu.Lock()
	v := io.inputs[0]
	io.inputs = io.inputs[1:]
	io.mu.Unlock()
	cb(v)
}

func (io *syncIO) OutputRequest(data Word4, t TypeModifier) {
	io.mu.Lock()
	io.outputs = append(io.outputs, data)
	io.mu.Unlock()
}

func assembleOrFail(t *testing.T, source string) []byte {
	t.Helper()
	bc, err := NewAssembler().Compile(source)
	require.NoError(t, err)
	return bc
}

// Smoke: load, run to HALT, observe STOPPED.
func TestProcessorSmoke(t *testing.T) {
	bc := assembleOrFail(t, `
		LOAD W 5
		ADD W 10
		HALT
	`)
	mem := NewMemoryManager()
	require.NoError(t, mem.Load(bc))
	p := NewProcessor(mem, nil, nil)

	err := p.Run()
	assert.NoError(t, err)
	assert.Equal(t, StateStopped, p.GetState())
	assert.Equal(t, uint32(15), p.GetAccumulator().Word())
}

// Hello-world via JNS: a tiny "print" subroutine is called through the
// jump-and-store idiom, using the target slot itself to stash the return
// address.
func TestProcessorHelloWorldViaJNS(t *testing.T) {
	bc := assembleOrFail(t, `
		LOAD W & char1
		JNS W print
		LOAD W & char2
		JNS W print
		HALT
	print: 0
		OUTPUT W
		JUMP W & print
	char1: 72
	char2: 73
	`)
	mem := NewMemoryManager()
	require.NoError(t, mem.Load(bc))
	io := &syncIO{}
	p := NewProcessor(mem, nil, io)

	require.NoError(t, p.Run())
	require.Len(t, io.outputs, 2)
	assert.Equal(t, uint32(72), io.outputs[0].Word())
	assert.Equal(t, uint32(73), io.outputs[1].Word())
}

// Skip semantics: SKIPLO/SKIPGT/SKIPEQ advance by 2 on a taken comparison,
// by 1 otherwise.
func TestProcessorSkipSemantics(t *testing.T) {
	bc := assembleOrFail(t, `
		LOAD W & five
		SKIPLO W & ten
		HALT
		LOAD W & one
		HALT
	one: 1
	five: 5
	ten: 10
	`)
	mem := NewMemoryManager()
	require.NoError(t, mem.Load(bc))
	p := NewProcessor(mem, nil, nil)

	require.NoError(t, p.Run())
	assert.Equal(t, uint32(1), p.GetAccumulator().Word(), "taken SKIPLO (5<10) jumps past the HALT to the LOAD after it")
}

// Memory mutation + reset: STORE mutates a data slot; ResetData restores
// the as-loaded snapshot without reassembling.
func TestProcessorMemoryMutationAndReset(t *testing.T) {
	bc := assembleOrFail(t, `
		LOAD W 99
		STORE W slot
		HALT
	slot: 0
	`)
	mem := NewMemoryManager()
	require.NoError(t, mem.Load(bc))
	p := NewProcessor(mem, nil, nil)

	require.NoError(t, p.Run())
	assert.Equal(t, uint32(99), mem.ReadArgument(3).Word())

	mem.ResetData()
	assert.Equal(t, uint32(0), mem.ReadArgument(3).Word())
}

// Async input: the Processor suspends to PAUSED_BY_IO on INPUT and resumes
// only once the IO collaborator's callback fires.
func TestProcessorAsyncInput(t *testing.T) {
	bc := assembleOrFail(t, `
		INPUT W
		ADD W 1
		HALT
	`)
	mem := NewMemoryManager()
	require.NoError(t, mem.Load(bc))

	gate := make(chan struct{})
	var resumeCB InputCallback
	blockingIO := &blockingIOStub{
		onInput: func(t TypeModifier, cb InputCallback) {
			resumeCB = cb
			close(gate)
		},
	}
	p := NewProcessor(mem, nil, blockingIO)

	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	<-gate
	assert.Equal(t, StatePausedByIO, p.GetState())

	resumeCB(WordFromWord(41))
	require.NoError(t, <-done)
	assert.Equal(t, uint32(42), p.GetAccumulator().Word())
}

type blockingIOStub struct {
	onInput func(TypeModifier, InputCallback)
}

func (b *blockingIOStub) InputRequest(t TypeModifier, cb InputCallback) { b.onInput(t, cb) }
func (b *blockingIOStub) OutputRequest(Word4, TypeModifier)             {}

// A stale input callback firing after Stop() must be silently discarded,
// never resurrecting a stopped Processor.
func TestProcessorStaleInputCallbackIsDiscarded(t *testing.T) {
	bc := assembleOrFail(t, `
		INPUT W
		HALT
	`)
	mem := NewMemoryManager()
	require.NoError(t, mem.Load(bc))

	var resumeCB InputCallback
	io := &blockingIOStub{onInput: func(t TypeModifier, cb InputCallback) { resumeCB = cb }}
	p := NewProcessor(mem, nil, io)

	require.NoError(t, p.Step())
	assert.Equal(t, StatePausedByIO, p.GetState())

	p.Stop()
	assert.Equal(t, StateStopped, p.GetState())

	resumeCB(WordFromWord(7))
	time.Sleep(time.Millisecond)
	assert.Equal(t, StateStopped, p.GetState(), "late callback must not resurrect a stopped processor")
	assert.Equal(t, Word4{}, p.GetAccumulator())
}

// Halt mid-run: HALT stops the Processor without running the next
// instruction, regardless of how far a Run() had gotten.
func TestProcessorHaltMidRun(t *testing.T) {
	bc := assembleOrFail(t, `
		LOAD W 1
		HALT
		LOAD W 999
	`)
	mem := NewMemoryManager()
	require.NoError(t, mem.Load(bc))
	p := NewProcessor(mem, nil, nil)

	require.NoError(t, p.Run())
	assert.Equal(t, uint32(1), p.GetAccumulator().Word())
	assert.Equal(t, StateStopped, p.GetState())
}

func TestProcessorDivisionByZeroIsArithmeticError(t *testing.T) {
	bc := assembleOrFail(t, `
		LOAD W 10
		DIV W & zero
		HALT
	zero: 0
	`)
	mem := NewMemoryManager()
	require.NoError(t, mem.Load(bc))
	p := NewProcessor(mem, nil, nil)

	err := p.Run()
	assert.ErrorIs(t, err, ErrArithmetic)
	assert.Equal(t, StateStopped, p.GetState())
}

func TestProcessorObserverFiresOnEveryMutation(t *testing.T) {
	bc := assembleOrFail(t, `
		LOAD W 3
		HALT
	`)
	mem := NewMemoryManager()
	require.NoError(t, mem.Load(bc))
	obs := &recordingObserver{}
	p := NewProcessor(mem, obs, nil)

	require.NoError(t, p.Run())
	assert.Contains(t, obs.events, "acc")
	assert.Contains(t, obs.events, "ip")
	assert.Contains(t, obs.events, "state:STOPPED")
}

// Pausing an INPUT wait via the debugger's generic "pause" request is a
// documented no-op: the IO wait takes precedence over a PAUSED request.
func TestProcessorPausedByIOTakesPrecedenceOverPaused(t *testing.T) {
	mem := NewMemoryManager()
	require.NoError(t, mem.Load(fiveByteProgram([5]byte{byte(OpInput) << 4, 0, 0, 0, 0})))
	io := &blockingIOStub{onInput: func(TypeModifier, InputCallback) {}}
	p := NewProcessor(mem, nil, io)

	require.NoError(t, p.Step())
	assert.Equal(t, StatePausedByIO, p.GetState())

	p.setState(StatePaused)
	assert.Equal(t, StatePausedByIO, p.GetState(), "PAUSED_BY_IO -> PAUSED is a no-op")
}

// Dispatch table smoke test, teacher-style plain table rather than testify
// assertions: every (opcode, type) combination the properties table
// declares valid must have a registered handler, and HALT must have none.
func TestDispatchTableCoversDeclaredCombinations(t *testing.T) {
	tbl := buildHandlerTable()
	for op, props := range opcodeProperties {
		if op == OpHalt {
			continue
		}
		for _, tm := range props.AllowedTypes {
			key := dispatchKey(op, tm)
			if tbl[key] == nil {
				t.Errorf("missing handler for opcode %s type %s (key %d)", props.Name, tm, key)
			}
		}
	}
	if tbl[haltByte&^0b11] != nil {
		t.Errorf("HALT must not have a handler (key %d)", haltByte&^0b11)
	}
}
