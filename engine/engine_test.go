package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

// assembleLines trims each line individually (raw string literals in test
// source carry indentation) so byte offsets are predictable for CALL/JMP
// targets that address the code segment directly.
func assembleLines(source string) []byte {
	var lines []string
	for _, l := range strings.Split(source, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func newTestEngine(t *testing.T, source string, stdin string, vfiles map[string][]byte) (*Engine, *bytes.Buffer) {
	t.Helper()
	program := assembleLines(source)
	var out bytes.Buffer
	e, err := New(Config{
		Program: program,
		Stdin:   strings.NewReader(stdin),
		Stdout:  &out,
		Vfiles:  vfiles,
	})
	assert(t, err == nil, "unexpected construction error: %v", err)
	return e, &out
}

func runToExit(t *testing.T, e *Engine) {
	t.Helper()
	e.Start()
	err := e.Run(context.Background())
	assert(t, err == nil, "unexpected run error: %v", err)
	assert(t, e.State() == StateStopped, "engine should have reached STOPPED")
}

func TestScenarioArithmeticAndStack(t *testing.T) {
	e, _ := newTestEngine(t, `
		MOV R1, 5
		MOV R2, 7
		ADD R1, R2
		PUSH R1
		POP R3
		MOV R8, 2
		MOV R1, R3
		SYSCALL
	`, "", nil)
	runToExit(t, e)
	assert(t, e.ExitCode() == 12, "expected exit code 12, got %d", e.ExitCode())
}

func TestScenarioWrap(t *testing.T) {
	e, _ := newTestEngine(t, `
		MOV R1, 0xFFFFFFFF
		ADD R1, 1
		MOV R8, 2
		SYSCALL
	`, "", nil)
	runToExit(t, e)
	assert(t, e.ExitCode() == 0, "expected exit code 0 after wraparound, got %d", e.ExitCode())
}

func TestScenarioSignedCompareAndConditionalJump(t *testing.T) {
	e, _ := newTestEngine(t, `
		MOV R1, 0xFFFFFFFF
		MOV R2, 1
		LT R1, R2
		JZ +28
		MOV R8, 2
		MOV R1, 1
		SYSCALL
		MOV R8, 2
		MOV R1, 0
		SYSCALL
	`, "", nil)
	runToExit(t, e)
	assert(t, e.ExitCode() == 1, "signed LT(-1,1) should be true, expected exit code 1, got %d", e.ExitCode())
}

func TestScenarioUnsignedCompareContrast(t *testing.T) {
	e, _ := newTestEngine(t, `
		MOV R1, 0xFFFFFFFF
		MOV R2, 1
		LTu R1, R2
		JZ +28
		MOV R8, 2
		MOV R1, 1
		SYSCALL
		MOV R8, 2
		MOV R1, 0
		SYSCALL
	`, "", nil)
	runToExit(t, e)
	assert(t, e.ExitCode() == 0, "unsigned LTu(0xFFFFFFFF,1) should be false, expected exit code 0, got %d", e.ExitCode())
}

func TestScenarioCallRet(t *testing.T) {
	e, _ := newTestEngine(t, `
		CALL 0x400020
		MOV R8, 2
		SYSCALL
		MOV R1, 42
		RET
	`, "", nil)
	runToExit(t, e)
	assert(t, e.ExitCode() == 42, "expected exit code 42 after CALL/RET, got %d", e.ExitCode())
}

func TestScenarioVirtualFileRead(t *testing.T) {
	e, out := newTestEngine(t, `
		MOV R1, 0x00500000
		MOV [R1], 0x65657267
		MOV [R1+4], 0x00000074
		MOV R2, 0x00500100
		MOV R3, 2
		MOV R8, 3
		SYSCALL
		MOV R1, R2
		MOV R2, 2
		MOV R8, 1
		SYSCALL
		MOV R8, 2
		MOV R1, 0
		SYSCALL
	`, "", map[string][]byte{"greet": []byte("hi")})
	runToExit(t, e)
	assert(t, out.String() == "hi", "expected stdout %q, got %q", "hi", out.String())
	assert(t, e.ExitCode() == 0, "expected exit code 0, got %d", e.ExitCode())
}

func TestScenarioExecReplacesProgram(t *testing.T) {
	nextProgram := []byte("MOV R8, 2\nMOV R1, 99\nSYSCALL\n")

	e, _ := newTestEngine(t, `
		MOV R1, 0x00500000
		MOV [R1], 0x7478656E
		MOV [R1+4], 0x00000000
		MOV R8, 5
		SYSCALL
		MOV R8, 2
		MOV R1, 1
		SYSCALL
	`, "", map[string][]byte{"next": nextProgram})
	runToExit(t, e)
	assert(t, e.ExitCode() == 99, "EXEC should hand control to the new program, expected exit code 99, got %d", e.ExitCode())
}

// TestExecPreservesBss asserts EXEC re-initialises only the code
// segment/SP/FP/PC/RNG/breakpoints (spec.md §4.9 steps 3-7) and never
// remaps bss or stack (step 2 is excluded for EXEC), so a value written to
// bss before EXEC is still there afterward.
func TestExecPreservesBss(t *testing.T) {
	nextProgram := []byte("MOV R1, 0x00500200\nMOV R2, [R1]\nMOV R8, 2\nMOV R1, R2\nSYSCALL\n")

	e, _ := newTestEngine(t, `
		MOV R1, 0x00500200
		MOV [R1], 7
		MOV R1, 0x00500000
		MOV [R1], 0x7478656E
		MOV [R1+4], 0x00000000
		MOV R8, 5
		SYSCALL
		MOV R8, 2
		MOV R1, 1
		SYSCALL
	`, "", map[string][]byte{"next": nextProgram})
	runToExit(t, e)
	assert(t, e.ExitCode() == 7, "bss value written before EXEC should survive into the new program, got exit code %d", e.ExitCode())
}
