package ui

import (
	"fmt"
	"strings"

	"github.com/muurk/writeseq/internal/argblock"
)

// RenderBlock renders a block as a numbered table of stores. Addresses
// written more than once are marked, since only the last store sticks.
func RenderBlock(block *argblock.Block, layout argblock.Layout) string {
	var b strings.Builder

	cb := "none"
	if block.Callback != 0 {
		cb = block.Callback.Hex() + " (called with 0, 0, 1)"
	}
	b.WriteString(ResultKeyStyle.Render("  Callback:") + " " + ResultValueStyle.Render(cb) + "\n")
	b.WriteString(ResultKeyStyle.Render("  Layout:") + " " + ResultValueStyle.Render(layout.String()) + "\n")
	b.WriteString(ResultKeyStyle.Render("  Ops:") + " " + ResultValueStyle.Render(fmt.Sprint(len(block.Ops))) + "\n")
	b.WriteString(ResultKeyStyle.Render("  Encoded:") + " " + ResultValueStyle.Render(fmt.Sprintf("%d bytes", layout.Size(len(block.Ops)))) + "\n")

	if len(block.Ops) == 0 {
		return b.String()
	}

	seen := make(map[argblock.Word]int, len(block.Ops))
	for _, op := range block.Ops {
		seen[op.Address]++
	}

	b.WriteString("\n")
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("  %5s  %-18s  %-18s", "#", "ADDRESS", "VALUE")))
	b.WriteString("\n")
	for i, op := range block.Ops {
		line := fmt.Sprintf("  %5d  %s  %-18s", i,
			TableAddressStyle.Render(fmt.Sprintf("%-18s", op.Address.Hex())),
			op.Value.Hex())
		if seen[op.Address] > 1 {
			line += StepNoteStyle.Render("  (rewritten)")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
