package vm

import (
	"fmt"
	"sync"
	"time"
)

// Registers is a snapshot of the Processor's accumulator, auxiliary, and
// instruction pointer registers.
type Registers struct {
	Accumulator       Word4
	Auxiliary         Word4
	InstructionPointer Address
}

// Observer receives a callback for every register, memory, or state
// mutation the Processor makes, after the mutation is visible and before
// the IP advances for the next instruction. A nil Observer is tolerated
// silently everywhere the Processor would otherwise call one.
type Observer interface {
	OnIPChanged(ip Address)
	OnAccChanged(acc Word4)
	OnAuxChanged(aux Word4)
	OnMemoryChanged(addr Address)
	OnStateChanged(state ProcessorState)
}

// InputCallback delivers the value an IO collaborator read in response to
// an InputRequest. It must be invoked exactly once, from any goroutine.
type InputCallback func(Word4)

// IO is the Processor's suspending input / buffered output collaborator.
// InputRequest is async: it registers callback and returns immediately,
// leaving the Processor in PAUSED_BY_IO until callback fires. OutputRequest
// is synchronous from the Processor's point of view: the Processor waits for
// the call to return before advancing, so any blocking inside it stalls the
// Processor.
type IO interface {
	InputRequest(t TypeModifier, callback InputCallback)
	OutputRequest(data Word4, t TypeModifier)
}

type handlerFunc func(p *Processor) error

// Processor is the fetch-decode-execute engine: two registers, an
// instruction pointer, a lifecycle state machine, and a 256-slot dispatch
// table built once at construction, mirroring processor.cpp's
// instructions_handlers_ array of closures.
type Processor struct {
	mu sync.Mutex

	memory   *MemoryManager
	observer Observer
	io       IO

	acc   Word4
	aux   Word4
	ip    Address
	state ProcessorState

	handlers [256]handlerFunc
}

// NewProcessor builds a Processor bound to memory, with optional observer
// and io collaborators (either may be nil and set later via SetObserver /
// SetIO).
func NewProcessor(memory *MemoryManager, observer Observer, io IO) *Processor {
	p := &Processor{memory: memory, observer: observer, io: io, state: StateStopped}
	p.handlers = buildHandlerTable()
	return p
}

func (p *Processor) SetObserver(o Observer) {
	p.mu.Lock()
	p.observer = o
	p.mu.Unlock()
}

func (p *Processor) SetIO(io IO) {
	p.mu.Lock()
	p.io = io
	p.mu.Unlock()
}

func (p *Processor) GetState() ProcessorState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsRunning reports whether the Processor is in any non-STOPPED state.
func (p *Processor) IsRunning() bool {
	return p.GetState() != StateStopped
}

func (p *Processor) GetAccumulator() Word4 { return p.getAcc() }
func (p *Processor) GetAuxiliary() Word4   { return p.getAux() }
func (p *Processor) GetInstructionPointer() Address { return p.getIP() }

func (p *Processor) GetRegisters() Registers {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Registers{Accumulator: p.acc, Auxiliary: p.aux, InstructionPointer: p.ip}
}

// SetAccumulator writes the accumulator directly (used by hosts seeding a
// run, e.g. the debugger), notifying the observer like any other mutation.
func (p *Processor) SetAccumulator(v Word4) { p.setAcc(v) }

// SetAuxiliary writes the auxiliary register directly.
func (p *Processor) SetAuxiliary(v Word4) { p.setAux(v) }

// SetInstructionPointer moves the IP. Moving it to or past the end of the
// loaded program transitions the Processor to STOPPED, exactly like running
// off the end of memory during Run/Step.
func (p *Processor) SetInstructionPointer(addr Address) { p.setIP(addr) }

// Stop forces a transition to STOPPED. Any INPUT request already in flight
// is not cancelled at the IO collaborator, but its callback becomes a
// silent no-op: resumeFromInput checks the state is still PAUSED_BY_IO
// before touching any registers.
func (p *Processor) Stop() {
	p.setState(StateStopped)
}

// Reset clears the registers and state back to their zero values. It does
// not touch loaded memory; pair with MemoryManager.ResetData to also undo
// data-memory mutation.
func (p *Processor) Reset() {
	p.mu.Lock()
	p.acc = Word4{}
	p.aux = Word4{}
	p.ip = 0
	p.state = StateStopped
	obs := p.observer
	p.mu.Unlock()
	if obs != nil {
		obs.OnAccChanged(Word4{})
		obs.OnAuxChanged(Word4{})
		obs.OnIPChanged(0)
		obs.OnStateChanged(StateStopped)
	}
}

// Step executes exactly one instruction. RUNNING becomes PAUSED afterward
// unless the instruction itself stopped the Processor (HALT, fetch past the
// end of memory, or a runtime error).
func (p *Processor) Step() error {
	p.setState(StateRunning)
	err := p.executeOne()
	if p.GetState() != StateStopped {
		p.setState(StatePaused)
	}
	return err
}

// Run executes instructions until the Processor stops, idle-waiting while
// PAUSED_BY_IO rather than spinning on the fetch step. Returns the last
// runtime error encountered, or nil if the program ran to HALT or off the
// end of memory.
func (p *Processor) Run() error {
	p.setState(StateRunning)
	var lastErr error
	for {
		state := p.GetState()
		if state == StateStopped {
			return lastErr
		}
		if state == StatePausedByIO {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err := p.executeOne(); err != nil {
			lastErr = err
		}
	}
}

// executeOne fetches, decodes, resolves the operand, and dispatches exactly
// one instruction. Fetch failures (running off the end of memory) stop the
// Processor silently; unknown opcodes and arithmetic errors stop it and are
// returned to the caller.
func (p *Processor) executeOne() error {
	ip := p.getIP()

	opByte, arg, err := p.memory.ReadInstruction(ip)
	if err != nil {
		p.setState(StateStopped)
		return nil
	}

	if opByte == haltByte {
		p.setState(StateStopped)
		return nil
	}

	argMod := ArgModifier(opByte & 0b11)
	key := opByte &^ 0b11

	switch argMod {
	case ArgNone:
		p.setAux(arg)
	case ArgRef:
		p.setAux(p.memory.ReadArgument(Address(arg.Word())))
	case ArgRefRef:
		inner := p.memory.ReadArgument(Address(arg.Word()))
		p.setAux(p.memory.ReadArgument(Address(inner.Word())))
	default:
		p.setState(StateStopped)
		return fmt.Errorf("%w: invalid argument modifier in byte 0x%02x at address %d", ErrUnknownOpcode, opByte, ip)
	}

	handler := p.handlers[key]
	if handler == nil {
		p.setState(StateStopped)
		return fmt.Errorf("%w: byte 0x%02x at address %d", ErrUnknownOpcode, opByte, ip)
	}

	if err := handler(p); err != nil {
		p.setState(StateStopped)
		return err
	}
	return nil
}

func (p *Processor) getAcc() Word4 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acc
}

func (p *Processor) getAux() Word4 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aux
}

func (p *Processor) getIP() Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ip
}

func (p *Processor) getIO() IO {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.io
}

func (p *Processor) setAcc(v Word4) {
	p.mu.Lock()
	p.acc = v
	obs := p.observer
	p.mu.Unlock()
	if obs != nil {
		obs.OnAccChanged(v)
	}
}

func (p *Processor) setAux(v Word4) {
	p.mu.Lock()
	p.aux = v
	obs := p.observer
	p.mu.Unlock()
	if obs != nil {
		obs.OnAuxChanged(v)
	}
}

// setIP moves the instruction pointer and, if it now sits at or past the
// end of loaded memory, transitions to STOPPED. The check lives here (not
// just at the next fetch) so that a host setting IP directly observes the
// same behavior as running off the end of the program.
func (p *Processor) setIP(v Address) {
	p.mu.Lock()
	p.ip = v
	obs := p.observer
	size := p.memory.Size()
	p.mu.Unlock()
	if obs != nil {
		obs.OnIPChanged(v)
	}
	if int(v) >= size {
		p.setState(StateStopped)
	}
}

func (p *Processor) advance() {
	p.setIP(p.getIP() + 1)
}

func (p *Processor) notifyMemoryChanged(addr Address) {
	p.mu.Lock()
	obs := p.observer
	p.mu.Unlock()
	if obs != nil {
		obs.OnMemoryChanged(addr)
	}
}

// setState applies the documented special case: a request to move from
// PAUSED_BY_IO to PAUSED (the debugger's "pause" request arriving while an
// INPUT is in flight) is a pure no-op — the IO wait takes precedence.
func (p *Processor) setState(s ProcessorState) {
	p.mu.Lock()
	cur := p.state
	if cur == s {
		p.mu.Unlock()
		return
	}
	if cur == StatePausedByIO && s == StatePaused {
		p.mu.Unlock()
		return
	}
	p.state = s
	obs := p.observer
	p.mu.Unlock()
	if obs != nil {
		obs.OnStateChanged(s)
	}
}

// resumeFromInput is the callback handed to the IO collaborator by the
// INPUT handler. It is invoked from whatever goroutine the collaborator
// runs on, possibly long after the Processor has moved on (Stop was
// called, or the program otherwise stopped) — in which case the state
// check below discards it silently. The state, accumulator, and IP
// mutations happen under a single lock acquisition so the run loop can
// never observe RUNNING with the IP still pointing at the INPUT
// instruction.
func (p *Processor) resumeFromInput(v Word4) {
	p.mu.Lock()
	if p.state != StatePausedByIO {
		p.mu.Unlock()
		return
	}
	p.acc = v
	p.ip = p.ip + 1
	newIP := p.ip
	size := p.memory.Size()
	stopped := int(newIP) >= size
	if stopped {
		p.state = StateStopped
	} else {
		p.state = StateRunning
	}
	obs := p.observer
	p.mu.Unlock()

	if obs != nil {
		obs.OnAccChanged(v)
		obs.OnIPChanged(newIP)
		if stopped {
			obs.OnStateChanged(StateStopped)
		} else {
			obs.OnStateChanged(StateRunning)
		}
	}
}
