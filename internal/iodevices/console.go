// Package iodevices provides vm.IO collaborators for running a Processor
// against real hardware: a terminal for now, with room for more later.
package iodevices

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"sandm/vm"
)

// nonBlockingChan is a single-sender, many-receiver channel that rejects a
// send past capacity instead of blocking the caller.
type nonBlockingChan[T any] struct {
	ch       chan T
	count    atomic.Int32
	capacity int32
}

func newNonBlockingChan[T any](capacity int32) *nonBlockingChan[T] {
	return &nonBlockingChan[T]{ch: make(chan T, capacity), capacity: capacity}
}

func (nc *nonBlockingChan[T]) send(v T) bool {
	if nc.count.Add(1) > nc.capacity {
		nc.count.Add(-1)
		return false
	}
	nc.ch <- v
	return true
}

func (nc *nonBlockingChan[T]) receive() (T, bool) {
	v, ok := <-nc.ch
	if ok {
		nc.count.Add(-1)
	}
	return v, ok
}

func (nc *nonBlockingChan[T]) close() {
	nc.count.Store(nc.capacity + 1)
	close(nc.ch)
}

type inputRequest struct {
	t  vm.TypeModifier
	cb vm.InputCallback
}

// Console is a vm.IO that reads one rune per INPUT from an io.Reader and
// writes every OUTPUT to an io.Writer. At most one ReadRune is ever in
// flight on the reader, matching the teacher's rule that a single
// goroutine owns stdin.
type Console struct {
	mu sync.Mutex

	in  *bufio.Reader
	out *bufio.Writer
	log *log.Logger

	requests *nonBlockingChan[inputRequest]
	closed   bool
}

// NewConsole starts the background reader goroutine and returns a ready
// Console. Close shuts the goroutine down; a closed Console answers any
// still-queued InputRequest with the zero word rather than blocking
// forever. A ReadRune already in progress is not interrupted.
func NewConsole(in io.Reader, out io.Writer, logger *log.Logger) *Console {
	if logger == nil {
		logger = log.Default()
	}
	c := &Console{
		in:       bufio.NewReader(in),
		out:      bufio.NewWriter(out),
		log:      logger,
		requests: newNonBlockingChan[inputRequest](32),
	}
	go c.readLoop()
	return c
}

func (c *Console) readLoop() {
	for {
		req, ok := c.requests.receive()
		if !ok {
			return
		}
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			req.cb(vm.Word4{})
			continue
		}
		r, _, err := c.in.ReadRune()
		if err != nil {
			c.log.Debug("console input closed", "err", err)
			req.cb(vm.Word4{})
			continue
		}
		switch req.t {
		case vm.TypeByte:
			req.cb(vm.WordFromByte(byte(r)))
		case vm.TypeReal:
			req.cb(vm.WordFromReal(float32(r)))
		case vm.TypeSignedWord:
			req.cb(vm.WordFromSignedWord(int32(r)))
		default:
			req.cb(vm.WordFromWord(uint32(r)))
		}
	}
}

// InputRequest queues a read off the console. If the Console has already
// been closed the callback fires immediately with the zero word rather
// than hanging.
func (c *Console) InputRequest(t vm.TypeModifier, cb vm.InputCallback) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		cb(vm.Word4{})
		return
	}
	if ok := c.requests.send(inputRequest{t: t, cb: cb}); !ok {
		c.log.Warn("console input request dropped, queue full")
		cb(vm.Word4{})
	}
}

// OutputRequest writes data to the console synchronously, formatted per t:
// a rune for TypeByte/TypeWord/TypeSignedWord, a decimal for TypeReal.
func (c *Console) OutputRequest(data vm.Word4, t vm.TypeModifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch t {
	case vm.TypeReal:
		fmt.Fprintf(c.out, "%g", data.Real())
	case vm.TypeByte:
		c.out.WriteRune(rune(data.Byte()))
	case vm.TypeSignedWord:
		c.out.WriteRune(rune(data.SignedWord()))
	default:
		c.out.WriteRune(rune(data.Word()))
	}
	c.out.Flush()
}

// Close stops the background reader. Queued and future InputRequests are
// answered with the zero word instead of blocking; a ReadRune already in
// progress on the reader is not interrupted.
func (c *Console) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.requests.close()
}
