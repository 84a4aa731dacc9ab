// Package debugger provides an interactive bubbletea TUI that single-steps
// a vm.Processor, watching registers and a page of memory change as it
// implements vm.Observer.
package debugger

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"sandm/vm"
)

const instructionsPerPage = 8

var (
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	haltedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	breakStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type model struct {
	proc *vm.Processor
	mem  *vm.MemoryManager

	// breakpoints is the set of addresses to stop at; sourceLine maps
	// address -> source line, both built from Assembler.CompileWithDebug's map.
	breakpoints map[vm.Address]struct{}
	sourceLine  map[vm.Address]int

	offset vm.Address
	prevIP vm.Address
	events []string
	lastErr error
	quitting bool
}

// New builds a debugger model over proc/mem, with breakpoints addressable
// by the debug map CompileWithDebug returns (inverted here to address ->
// line for display, and to vm.Address keys for the break set).
func New(proc *vm.Processor, mem *vm.MemoryManager, debugMap map[int]vm.Address, breakAt []int) model {
	sourceLine := make(map[vm.Address]int, len(debugMap))
	for line, addr := range debugMap {
		sourceLine[addr] = line
	}
	breaks := make(map[vm.Address]struct{}, len(breakAt))
	for _, line := range breakAt {
		if addr, ok := debugMap[line]; ok {
			breaks[addr] = struct{}{}
		}
	}
	return model{proc: proc, mem: mem, breakpoints: breaks, sourceLine: sourceLine}
}

func (m *model) Init() tea.Cmd {
	return nil
}

// OnIPChanged etc. implement vm.Observer so the model can be registered
// directly with a Processor and receive a live event feed for the log
// panel, independent of whatever stepped it.
func (m *model) OnIPChanged(ip vm.Address)          { m.events = append(m.events, fmt.Sprintf("ip -> %d", ip)) }
func (m *model) OnAccChanged(acc vm.Word4)          { m.events = append(m.events, fmt.Sprintf("acc -> %d", acc.Word())) }
func (m *model) OnAuxChanged(aux vm.Word4)          { m.events = append(m.events, fmt.Sprintf("aux -> %d", aux.Word())) }
func (m *model) OnMemoryChanged(addr vm.Address)    { m.events = append(m.events, fmt.Sprintf("mem[%d] written", addr)) }
func (m *model) OnStateChanged(s vm.ProcessorState) { m.events = append(m.events, "state -> "+s.String()) }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case " ", "s":
			m.prevIP = m.proc.GetInstructionPointer()
			if err := m.proc.Step(); err != nil {
				m.lastErr = err
			}

		case "c":
			m.prevIP = m.proc.GetInstructionPointer()
			for {
				if m.proc.GetState() == vm.StateStopped {
					break
				}
				if _, isBreak := m.breakpoints[m.proc.GetInstructionPointer()]; isBreak && m.proc.GetInstructionPointer() != m.prevIP {
					break
				}
				if err := m.proc.Step(); err != nil {
					m.lastErr = err
					break
				}
			}

		case "r":
			m.proc.Reset()
			m.mem.ResetData()

		case "down", "j":
			m.offset += instructionsPerPage
		case "up", "k":
			if m.offset >= instructionsPerPage {
				m.offset -= instructionsPerPage
			}
		}
	}
	return m, nil
}

func (m *model) renderPage(start vm.Address) string {
	ip := m.proc.GetInstructionPointer()
	s := fmt.Sprintf("%04d | ", start)
	for i := vm.Address(0); i < instructionsPerPage; i++ {
		addr := start + i
		opByte, arg, err := m.mem.ReadInstruction(addr)
		cell := "  --  "
		if err == nil {
			cell = fmt.Sprintf(" %02x/%d ", opByte, arg.Word())
		}
		if _, isBreak := m.breakpoints[addr]; isBreak {
			cell = breakStyle.Render(cell)
		}
		if addr == ip {
			cell = currentStyle.Render(cell)
		}
		s += cell
	}
	return s
}

func (m *model) pageTable() string {
	lines := []string{"addr |    one instruction slot per column"}
	base := m.offset - (m.offset % instructionsPerPage)
	for p := 0; p < 6; p++ {
		start := base + vm.Address(p*instructionsPerPage)
		if int(start) >= m.mem.Size() && p > 0 {
			break
		}
		lines = append(lines, m.renderPage(start))
	}
	return strings.Join(lines, "\n")
}

func (m *model) status() string {
	regs := m.proc.GetRegisters()
	state := m.proc.GetState()
	stateStr := state.String()
	if state == vm.StateStopped {
		stateStr = haltedStyle.Render(stateStr)
	}
	line := -1
	if l, ok := m.sourceLine[regs.InstructionPointer]; ok {
		line = l
	}
	errStr := "none"
	if m.lastErr != nil {
		errStr = m.lastErr.Error()
	}
	return fmt.Sprintf(`
 state: %s
    ip: %d (line %d, was %d)
   acc: %d
   aux: %d
 error: %s
`, stateStr, regs.InstructionPointer, line, m.prevIP, regs.Accumulator.Word(), regs.Auxiliary.Word(), errStr)
}

func (m *model) eventLog() string {
	n := len(m.events)
	if n == 0 {
		return "(no events yet)"
	}
	start := 0
	if n > 10 {
		start = n - 10
	}
	return strings.Join(m.events[start:], "\n")
}

// View renders the page table, register status, and a dump of the event
// feed plus the currently decoded instruction byte.
func (m *model) View() string {
	if m.quitting {
		return ""
	}
	opByte, arg, _ := m.mem.ReadInstruction(m.proc.GetInstructionPointer())
	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, m.pageTable(), m.status()),
		"",
		m.eventLog(),
		"",
		spew.Sdump(struct {
			OpByte byte
			Arg    uint32
		}{opByte, arg.Word()}),
		"space/s: step   c: continue to breakpoint   r: reset   j/k: scroll   q: quit",
	)
}

// Run starts the interactive debugger over proc/mem. debugMap and breakAt
// come from Assembler.CompileWithDebug and a list of 1-based source lines
// to break on, respectively.
func Run(proc *vm.Processor, mem *vm.MemoryManager, debugMap map[int]vm.Address, breakAt []int) error {
	m := New(proc, mem, debugMap, breakAt)
	proc.SetObserver(&m)
	_, err := tea.NewProgram(&m).Run()
	return err
}
