// Package cfgx extracts a lightweight, coarse control-flow graph from
// assembly text (component C) — a structural-similarity signal only, never
// a correctness analysis (spec §4.C).
package cfgx

import (
	"strings"

	"github.com/resembl/resembl/pkg/token"
)

// Graph is the coarse CFG contract of spec §4.C: a block count, an edge
// count, each block's instruction count, and an adjacency map.
type Graph struct {
	NumBlocks  int
	NumEdges   int
	BlockSizes []int
	Adj        map[int][]int
}

type block struct {
	label          string
	instructions   []string
	branchMnemonic string // empty if the block never closed on a branch
	target         string // upper-cased operand text of a branch instruction, "" if none
}

// Extract builds the CFG for code. Lines are NOT assumed free of trailing
// comments — each line's `;`-comment, if any, is stripped here,
// independent of token.Normalize.
func Extract(code string) *Graph {
	lines := strings.Split(code, "\n")

	var blocks []*block
	var current *block

	labelIndex := make(map[string]int)

	closeCurrent := func() {
		if current != nil {
			blocks = append(blocks, current)
			current = nil
		}
	}
	ensureCurrent := func() {
		if current == nil {
			current = &block{}
		}
	}
	startBlock := func(label string) {
		closeCurrent()
		current = &block{label: label}
		if label != "" {
			labelIndex[label] = len(blocks)
		}
	}
	appendInstruction := func(instr string) {
		ensureCurrent()
		current.instructions = append(current.instructions, instr)
		mnemonic := mnemonicOf(instr)
		if token.BranchInstructions[mnemonic] {
			current.branchMnemonic = mnemonic
			current.target = targetOf(instr)
			closeCurrent()
		}
	}

	for _, raw := range lines {
		line := stripComment(raw)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if idx := strings.Index(trimmed, ":"); idx >= 0 {
			label := strings.ToUpper(strings.TrimSpace(trimmed[:idx]))
			startBlock(label)
			if rest := strings.TrimSpace(trimmed[idx+1:]); rest != "" {
				appendInstruction(rest)
			}
			continue
		}

		appendInstruction(trimmed)
	}
	closeCurrent()

	adj := make(map[int][]int)
	numEdges := 0
	addEdge := func(from, to int) {
		adj[from] = append(adj[from], to)
		numEdges++
	}

	for i, b := range blocks {
		switch {
		case b.branchMnemonic == "":
			// Non-branch terminal block: fallthrough to next block.
			if i+1 < len(blocks) {
				addEdge(i, i+1)
			}
		case token.RetInstructions[b.branchMnemonic]:
			// RET/RETN/RETF: no successors.
		case b.branchMnemonic == "JMP":
			if target, ok := labelIndex[b.target]; ok {
				addEdge(i, target)
			}
			// No fallthrough.
		default:
			// Conditional jump, LOOPcc, or CALL: fallthrough plus a
			// resolved-target edge if the label is known.
			if i+1 < len(blocks) {
				addEdge(i, i+1)
			}
			if target, ok := labelIndex[b.target]; ok {
				addEdge(i, target)
			}
		}
	}

	sizes := make([]int, len(blocks))
	for i, b := range blocks {
		sizes[i] = len(b.instructions)
	}

	return &Graph{
		NumBlocks:  len(blocks),
		NumEdges:   numEdges,
		BlockSizes: sizes,
		Adj:        adj,
	}
}

func stripComment(line string) string {
	if idx := strings.Index(line, ";"); idx >= 0 {
		return line[:idx]
	}
	return line
}

func mnemonicOf(instr string) string {
	fields := strings.Fields(instr)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// targetOf extracts the branch operand (the jump/call target), stripped of
// trailing punctuation, upper-cased for label-table lookup.
func targetOf(instr string) string {
	fields := strings.Fields(instr)
	if len(fields) < 2 {
		return ""
	}
	operand := strings.TrimRight(fields[1], ",;")
	return strings.ToUpper(operand)
}
