package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/lightninglabs/xswap/escrow"
	"github.com/stretchr/testify/require"
)

// TestWriteMermaid tests the rendering of the escrow lifecycle.
func TestWriteMermaid(t *testing.T) {
	var b bytes.Buffer
	writeMermaid(&b, escrow.Lifecycle())

	out := b.String()
	require.Contains(t, out, "```mermaid\nstateDiagram-v2\n")
	require.Contains(t, out, "[*] --> Creating: OnCreate\n")
	require.Contains(t, out, "Active --> Claiming: OnClaim\n"+
		"Active --> Refunding: OnRefund\n")
	require.Contains(t, out, "Claiming --> Claimed: OnClaimed\n")
	require.Contains(t, out, "Refunding --> Active: OnError\n")

	// The output is stable.
	var again bytes.Buffer
	writeMermaid(&again, escrow.Lifecycle())
	require.Equal(t, out, again.String())

	file := filepath.Join(t.TempDir(), "escrow.md")
	require.NoError(t, writeMermaidFile(file, escrow.Lifecycle()))
	require.FileExists(t, file)
}
