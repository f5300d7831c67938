package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeInstructionBasics(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Instruction
	}{
		{
			name: "no operands",
			line: "NOP",
			want: Instruction{Mnemonic: MnemNop, Len: 4},
		},
		{
			name: "empty line is NOP",
			line: "",
			want: Instruction{Mnemonic: MnemNop, Len: 1},
		},
		{
			name: "comment stripped",
			line: "NOP ; does nothing",
			want: Instruction{Mnemonic: MnemNop, Len: 19},
		},
		{
			name: "two register operands",
			line: "MOV R1, R2",
			want: Instruction{
				Mnemonic: MnemMov,
				Operands: []Operand{
					{Kind: OperandRegister, text: "R1"},
					{Kind: OperandRegister, text: "R2"},
				},
				Len: 11,
			},
		},
		{
			name: "bracketed address with offset",
			line: "MOV R1, [R2+4]",
			want: Instruction{
				Mnemonic: MnemMov,
				Operands: []Operand{
					{Kind: OperandRegister, text: "R1"},
					{Kind: OperandAddress, text: "R2+4", addrReg: "R2", addrOp: '+', addrImm: 4, addrHasImm: true},
				},
				Len: 15,
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := decodeInstruction(c.line)
			assert(t, err == nil, "unexpected decode error: %v", err)
			if diff := cmp.Diff(c.want, got, cmp.AllowUnexported(Instruction{}, Operand{})); diff != "" {
				t.Fatalf("decodeInstruction(%q) mismatch (-want +got):\n%s", c.line, diff)
			}
		})
	}
}

func TestDecodeInstructionRejectsWrongArity(t *testing.T) {
	_, err := decodeInstruction("MOV R1")
	assert(t, err != nil, "MOV with one operand should be BAD_INST")
	assert(t, err.Code == ErrBadInst, "wrong arity should report BAD_INST, got %s", err.Code)
}

func TestDecodeInstructionRejectsUnknownMnemonic(t *testing.T) {
	_, err := decodeInstruction("FROBNICATE R1")
	assert(t, err != nil, "unknown mnemonic should fail")
	assert(t, err.Code == ErrBadInst, "unknown mnemonic should report BAD_INST, got %s", err.Code)
}

func TestJmpRelativeLexing(t *testing.T) {
	instr, err := decodeInstruction("JMP +3")
	assert(t, err == nil, "unexpected decode error: %v", err)
	assert(t, instr.Operands[0].relative, "a leading '+' with no space should select relative mode")

	instr, err = decodeInstruction("JMP -0x10")
	assert(t, err == nil, "unexpected decode error: %v", err)
	assert(t, instr.Operands[0].relative, "a leading '-' with no space should select relative mode")
}
