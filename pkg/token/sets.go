// Package token implements the architecture-aware assembly lexer and
// normalizer (component A): normalize/tokenize map assembly source to a
// canonical string and an ordered token list.
//
// The closed vocabulary tables below follow the shape of the retrieved
// keurnel-assembler ArchitectureProfile: immutable, upper-case-keyed sets
// built once at package init and never mutated afterward, safe for
// concurrent read access by any number of tokenizer calls.
package token

// Registers is the union of the x86/x86-64, ARM/AArch64, MIPS, and RISC-V
// register sets (spec §4.A, substitution rule 1). Membership is checked
// case-insensitively by upper-casing the candidate before lookup.
var Registers = buildSet(
	// x86/x86-64 general purpose (8/16/32/64-bit), segment, and pointer regs.
	"AL", "AH", "AX", "EAX", "RAX",
	"BL", "BH", "BX", "EBX", "RBX",
	"CL", "CH", "CX", "ECX", "RCX",
	"DL", "DH", "DX", "EDX", "RDX",
	"SI", "ESI", "RSI", "SIL",
	"DI", "EDI", "RDI", "DIL",
	"BP", "EBP", "RBP", "BPL",
	"SP", "ESP", "RSP", "SPL",
	"R8", "R8D", "R8W", "R8B",
	"R9", "R9D", "R9W", "R9B",
	"R10", "R10D", "R10W", "R10B",
	"R11", "R11D", "R11W", "R11B",
	"R12", "R12D", "R12W", "R12B",
	"R13", "R13D", "R13W", "R13B",
	"R14", "R14D", "R14W", "R14B",
	"R15", "R15D", "R15W", "R15B",
	"CS", "DS", "ES", "FS", "GS", "SS",
	"RIP", "EIP", "IP",
	"EFLAGS", "RFLAGS", "FLAGS",
	"CR0", "CR2", "CR3", "CR4", "CR8",
	"DR0", "DR1", "DR2", "DR3", "DR6", "DR7",
	"XMM0", "XMM1", "XMM2", "XMM3", "XMM4", "XMM5", "XMM6", "XMM7",
	"XMM8", "XMM9", "XMM10", "XMM11", "XMM12", "XMM13", "XMM14", "XMM15",
	"YMM0", "YMM1", "YMM2", "YMM3", "YMM4", "YMM5", "YMM6", "YMM7",
	"ZMM0", "ZMM1", "ZMM2", "ZMM3",
	"MM0", "MM1", "MM2", "MM3", "MM4", "MM5", "MM6", "MM7",

	// ARM/AArch64.
	"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7",
	"R8", "R9", "R10", "R11", "R12", "LR", "PC", "SL", "FP", "IP_ARM",
	"X0", "X1", "X2", "X3", "X4", "X5", "X6", "X7", "X8", "X9",
	"X10", "X11", "X12", "X13", "X14", "X15", "X16", "X17", "X18", "X19",
	"X20", "X21", "X22", "X23", "X24", "X25", "X26", "X27", "X28", "X29", "X30",
	"W0", "W1", "W2", "W3", "W4", "W5", "W6", "W7", "W8", "W9",
	"SP_ARM", "XZR", "WZR", "NZCV",

	// MIPS.
	"ZERO", "AT", "V0", "V1", "A0", "A1", "A2", "A3",
	"T0", "T1", "T2", "T3", "T4", "T5", "T6", "T7", "T8", "T9",
	"S0", "S1", "S2", "S3", "S4", "S5", "S6", "S7",
	"K0", "K1", "GP", "RA",

	// RISC-V.
	"X0", "X1", "X2", "X3", "X4", "X5", "X6", "X7",
	"RA_RV", "SP_RV", "GP_RV", "TP", "T0_RV", "T1_RV", "T2_RV",
	"S0_RV", "S1_RV", "A0_RV", "A1_RV", "A2_RV", "A3_RV",
)

// RareInstructions are system/privileged/uncommon mnemonics whose presence
// in a shingle boosts its weight to 3 (spec §4.B). Disjoint from
// CommonInstructions by construction (tested in this package).
var RareInstructions = buildSet(
	"CPUID", "RDTSC", "RDTSCP", "SYSCALL", "SYSENTER", "SYSEXIT", "SYSRET",
	"VMCALL", "VMLAUNCH", "VMRESUME", "VMXOFF", "VMXON", "VMCLEAR", "VMPTRLD",
	"RDMSR", "WRMSR", "LGDT", "SGDT", "LIDT", "SIDT", "LLDT", "SLDT",
	"LTR", "STR", "INVD", "WBINVD", "INVLPG", "HLT", "RSM", "SMSW", "LMSW",
	"CLTS", "XGETBV", "XSETBV", "RDPMC", "IN", "OUT", "INS", "OUTS",
	"MONITOR", "MWAIT", "SWI", "SVC", "HVC", "SMC", "ERET", "WFI", "WFE",
	"MRS", "MSR", "TLBI", "DC", "IC",
)

// CommonInstructions are ubiquitous mnemonics (plus the normalization
// placeholders) whose presence attenuates a shingle's weight to 1 when
// every token in it is common (spec §4.B).
var CommonInstructions = buildSet(
	"MOV", "PUSH", "POP", "ADD", "SUB", "XOR", "AND", "OR", "NOP", "LEA",
	"CMP", "TEST", "INC", "DEC",
	"REG", "IMM", "MEM_SIZE", "LABEL",
)

// sizePrefixes are the case-insensitive memory-size keywords normalized to
// MEM_SIZE (spec §4.A, substitution rule 4).
var sizePrefixes = buildSet("DWORD", "WORD", "BYTE", "QWORD", "PTR")

// BranchInstructions terminate a basic block during CFG extraction
// (spec §4.C). Jcc and LOOPcc are enumerated explicitly rather than
// pattern-matched, to stay a closed, auditable set.
var BranchInstructions = buildSet(
	"JMP",
	// Jcc
	"JE", "JZ", "JNE", "JNZ", "JG", "JNLE", "JGE", "JNL", "JL", "JNGE",
	"JLE", "JNG", "JA", "JNBE", "JAE", "JNB", "JB", "JNAE", "JBE", "JNA",
	"JC", "JNC", "JO", "JNO", "JS", "JNS", "JP", "JPE", "JNP", "JPO",
	"JCXZ", "JECXZ", "JRCXZ",
	// LOOPcc
	"LOOP", "LOOPE", "LOOPZ", "LOOPNE", "LOOPNZ",
	// CALL / RET
	"CALL", "RET", "RETN", "RETF",
)

// RetInstructions are the subset of BranchInstructions with no successors
// (spec §4.C edge rule 1).
var RetInstructions = buildSet("RET", "RETN", "RETF")

func buildSet(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
