package engine

import (
	"bufio"
	"context"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// State is the engine's run state, mirroring spec.md §4.6.
type State int

const (
	StateStopped State = iota
	StateRunning
	StateStepping
	StateUnknown // reserved, currently unused
)

const stackReserve uint32 = 0x10

// Engine owns every piece of ISA state: registers, memory, files, the event
// emitter, the breakpoint set, stdin/stdout, exit code, run state, and the
// "continue" signal used to release a step paused at a breakpoint -
// engine.py's Engine class.
type Engine struct {
	registers *Registers
	memory    *MemoryManager
	files     *FileManager
	events    *EventEmitter

	breakpoints     map[uint32]struct{}
	continueSignal  chan struct{}

	state    State
	exitCode int32

	stdin  *bufio.Reader
	stdout io.Writer

	rng        *rand.Rand
	httpClient *http.Client

	program []byte
}

// Config bundles the construction-time inputs to New, mirroring
// engine.py's Engine.__init__(program, stdin=..., stdout=..., vfiles=...).
type Config struct {
	Program []byte
	Stdin   io.Reader
	Stdout  io.Writer
	Vfiles  map[string][]byte
}

// New constructs an Engine and boots it per spec.md §4.9.
func New(cfg Config) (*Engine, *ISAError) {
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	e := &Engine{
		registers:      newRegisters(),
		memory:         newMemoryManager(),
		files:          newFileManager(cfg.Vfiles),
		events:         newEventEmitter(),
		breakpoints:    make(map[uint32]struct{}),
		continueSignal: make(chan struct{}, 1),
		stdin:          bufio.NewReader(cfg.Stdin),
		stdout:         cfg.Stdout,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}

	if err := e.boot(cfg.Program); err != nil {
		return nil, err
	}
	return e, nil
}

// boot implements spec.md §4.9 steps 2-7, run once at construction time from
// New. It maps all three segments fresh and then defers the SP/FP/PC/RNG/
// breakpoint reset to reinitRegistersAndRNG. EXEC does NOT call boot: per
// spec.md §4.9, EXEC re-runs only steps 3-7 (step 2, mapping segments, is
// explicitly excluded), so it uses execReinit instead, which never touches
// bss/stack.
func (e *Engine) boot(program []byte) *ISAError {
	if len(program) > int(CodeSegmentSize) {
		return newISAError(ErrBadConfig, "program (%d bytes) exceeds code segment size (%d bytes)", len(program), CodeSegmentSize)
	}

	for _, name := range []string{CodeSegmentName, BssSegmentName, StackSegmentName} {
		_ = e.memory.Unmap(name)
	}

	if err := e.memory.Map(CodeSegmentName, CodeSegmentStart, CodeSegmentSize, PermRead|PermExec, program); err != nil {
		return err
	}
	if err := e.memory.Map(BssSegmentName, BssSegmentStart, BssSegmentSize, PermRead|PermWrite, nil); err != nil {
		return err
	}
	if err := e.memory.Map(StackSegmentName, StackSegmentStart, StackSegmentSize, PermRead|PermWrite, nil); err != nil {
		return err
	}

	e.program = program
	e.reinitRegistersAndRNG()
	e.state = StateStopped
	return nil
}

// reinitRegistersAndRNG resets SP/FP to the top of the stack segment, PC to
// the start of the code segment, reseeds the RNG, and clears breakpoints -
// the part of spec.md §4.9 steps 3-7 shared by both boot (construction) and
// execReinit (EXEC).
func (e *Engine) reinitRegistersAndRNG() {
	sp := StackSegmentStart + StackSegmentSize - stackReserve
	_ = e.registers.Set("SP", sp)
	_ = e.registers.Set("FP", sp)
	e.registers.SetProgramCounter(CodeSegmentStart)

	e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))

	e.breakpoints = make(map[uint32]struct{})
}

// execReinit implements EXEC's re-init path: spec.md §4.9 steps 3-7 only.
// Unlike boot, it never unmaps/remaps bss or stack (step 2 is explicitly
// excluded for EXEC) - it overwrites the existing code segment's bytes in
// place, mirroring engine.py's init() which only touches the code segment's
// memory, leaving bss/stack content untouched across EXEC. It also never
// touches e.state: EXEC runs mid-Step while state is STEPPING, and Step's
// post-execute check restores RUNNING on its own once execute returns.
func (e *Engine) execReinit(program []byte) *ISAError {
	if len(program) > int(CodeSegmentSize) {
		return newISAError(ErrBadConfig, "program (%d bytes) exceeds code segment size (%d bytes)", len(program), CodeSegmentSize)
	}
	if err := e.memory.ResetSegment(CodeSegmentName, program); err != nil {
		return err
	}
	e.program = program
	e.reinitRegistersAndRNG()
	return nil
}

// AddBreakpoint/RemoveBreakpoint manage the breakpoint set. Per spec.md §5,
// external mutation is only safe between steps; callers driving a live
// debugger must serialise with the running loop themselves.
func (e *Engine) AddBreakpoint(addr uint32) {
	e.breakpoints[addr] = struct{}{}
}

func (e *Engine) RemoveBreakpoint(addr uint32) {
	delete(e.breakpoints, addr)
}

// Continue releases a step currently gated at a breakpoint - the external
// half of spec.md §5's "continue" signal.
func (e *Engine) Continue() {
	select {
	case e.continueSignal <- struct{}{}:
	default:
	}
}

func (e *Engine) State() State      { return e.state }
func (e *Engine) ExitCode() int32   { return e.exitCode }
func (e *Engine) Registers() *Registers { return e.registers }
func (e *Engine) Memory() *MemoryManager { return e.memory }
func (e *Engine) Files() *FileManager { return e.files }
func (e *Engine) Events() *EventEmitter { return e.events }

// PruneVfiles drops every virtual file - engine.py:prune_vfiles.
func (e *Engine) PruneVfiles() {
	e.files.Prune()
}

// Start/Stop transition state unconditionally, mirroring engine.py's
// start()/stop().
func (e *Engine) Start() { e.state = StateRunning }
func (e *Engine) Stop()  { e.state = StateStopped }

// stackPush decrements SP by 4 then writes - spec.md §4.5's descending
// stack discipline.
func (e *Engine) stackPush(v uint32) *ISAError {
	sp, err := e.registers.Get("SP")
	if err != nil {
		return err
	}
	sp -= 4
	if err := e.memory.Set32(sp, v); err != nil {
		return err
	}
	return e.registers.Set("SP", sp)
}

// stackPop reads then increments SP by 4.
func (e *Engine) stackPop() (uint32, *ISAError) {
	sp, err := e.registers.Get("SP")
	if err != nil {
		return 0, err
	}
	v, err := e.memory.Get32(sp)
	if err != nil {
		return 0, err
	}
	if serr := e.registers.Set("SP", sp+4); serr != nil {
		return 0, serr
	}
	return v, nil
}

// decodeAt fetches and decodes the instruction at addr out of the code
// segment, byte by byte via the EXEC permission path, stopping at the
// first `\n` delimiter (or BAD_INST if none is found before the segment's
// end).
func (e *Engine) decodeAt(addr uint32) (Instruction, *ISAError) {
	var line []byte
	cur := addr
	for {
		b, err := e.memory.FetchExecByte(cur)
		if err != nil {
			return Instruction{}, err
		}
		if b == '\n' {
			break
		}
		line = append(line, b)
		cur++
		if cur >= CodeSegmentStart+CodeSegmentSize {
			return Instruction{}, newISAError(ErrBadInst, "unterminated instruction at 0x%08x", addr)
		}
	}
	return decodeInstruction(string(line))
}

// Step executes exactly one instruction, implementing spec.md §4.5's
// per-step protocol and §4.6's STEPPING guard.
func (e *Engine) Step(ctx context.Context) *ISAError {
	if e.state != StateRunning {
		return newISAError(ErrBadInst, "step requires RUNNING state")
	}
	e.state = StateStepping

	err := e.stepLocked(ctx)
	if err != nil {
		e.events.Trigger(ctx, EventError, Before, err)
		e.state = StateStopped
		return err
	}

	if e.state == StateStepping {
		e.state = StateRunning
	}
	return nil
}

func (e *Engine) stepLocked(ctx context.Context) *ISAError {
	pc := e.registers.ProgramCounter()
	instr, err := e.decodeAt(pc)
	if err != nil {
		return err
	}
	e.registers.SetProgramCounter(pc + instr.Len)

	if herr := e.events.Trigger(ctx, EventStep, Before, instr); herr != nil {
		return normalizeError(herr)
	}

	if err := e.execute(ctx, instr); err != nil {
		return err
	}

	if herr := e.events.Trigger(ctx, EventStep, After, instr); herr != nil {
		return normalizeError(herr)
	}
	return nil
}

// Run loops Step while state == RUNNING, gating on breakpoints at the top
// of each iteration per spec.md §5, and exits cleanly (returning the
// terminal error, if any) when state becomes STOPPED or an error escapes
// Step - spec.md §4.6's run()/§7's propagation policy. Per the Open
// Question decision recorded in SPEC_FULL.md, the error is returned rather
// than swallowed so a caller (e.g. the CLI) can exit the process non-zero.
func (e *Engine) Run(ctx context.Context) *ISAError {
	e.Start()
	for e.state != StateStopped {
		if _, gated := e.breakpoints[e.registers.ProgramCounter()]; gated {
			if herr := e.events.Trigger(ctx, EventBreakpoint, Before, e.registers.ProgramCounter()); herr != nil {
				return normalizeError(herr)
			}
			select {
			case <-e.continueSignal:
			case <-ctx.Done():
				return newISAError(ErrUnknown, "context cancelled while gated at breakpoint")
			}
			if herr := e.events.Trigger(ctx, EventBreakpoint, After, e.registers.ProgramCounter()); herr != nil {
				return normalizeError(herr)
			}
		}

		if err := e.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}
