package engine

// registerNames is the fixed set of named registers, mirroring const.py's
// REGISTERS list; PC is deliberately excluded from generic get/set so it can
// only be mutated via ProgramCounter()/SetProgramCounter().
var registerNames = []string{"R1", "R2", "R3", "R4", "R5", "R6", "R7", "R8", "FP", "SP"}

const programCounterName = "PC"

// Registers is the named 32-bit register file: R1-R8, PC, FP, SP, all
// initialised to 0. Every write passes through a mod-2^32 wrap implicitly
// (the field type is uint32), and PC is reachable only through the two
// program-counter-specific accessors - register.py's get_program_counter/
// set_program_counter split.
type Registers struct {
	values map[string]uint32
	pc     uint32
}

func newRegisters() *Registers {
	r := &Registers{values: make(map[string]uint32, len(registerNames))}
	for _, name := range registerNames {
		r.values[name] = 0
	}
	return r
}

func isValidRegisterName(name string) bool {
	for _, n := range registerNames {
		if n == name {
			return true
		}
	}
	return false
}

// Get reads a named register. Reading "PC" through this path is rejected,
// matching register.py:get_reg's explicit `name == PC` check.
func (r *Registers) Get(name string) (uint32, *ISAError) {
	if name == programCounterName {
		return 0, newISAError(ErrBadInst, "invalid operand: PC is not accessible through the generic register interface")
	}
	v, ok := r.values[name]
	if !ok {
		return 0, newISAError(ErrBadInst, "invalid operand: unknown register %q", name)
	}
	return v, nil
}

// Set writes a named register. Writing "PC" through this path is rejected.
func (r *Registers) Set(name string, value uint32) *ISAError {
	if name == programCounterName {
		return newISAError(ErrBadInst, "invalid operand: PC is not accessible through the generic register interface")
	}
	if !isValidRegisterName(name) {
		return newISAError(ErrBadInst, "invalid operand: unknown register %q", name)
	}
	r.values[name] = value
	return nil
}

// ProgramCounter and SetProgramCounter are the only path that may read or
// write PC.
func (r *Registers) ProgramCounter() uint32       { return r.pc }
func (r *Registers) SetProgramCounter(v uint32)   { r.pc = v }

// Snapshot returns a defensive copy of every named register plus PC, for
// debug printing and tests.
func (r *Registers) Snapshot() map[string]uint32 {
	out := make(map[string]uint32, len(r.values)+1)
	for k, v := range r.values {
		out[k] = v
	}
	out[programCounterName] = r.pc
	return out
}
