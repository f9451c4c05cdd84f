package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/lightninglabs/xswap/escrow"
	"github.com/lightninglabs/xswap/fsm"
)

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run() error {
	out := flag.String("out", "", "outfile")
	stateMachine := flag.String("fsm", "", "the state machine to parse")
	flag.Parse()

	if filepath.Ext(*out) != ".md" {
		return errors.New("wrong argument: out must be a .md file")
	}

	fp, err := filepath.Abs(*out)
	if err != nil {
		return err
	}

	switch *stateMachine {
	case "escrow":
		return writeMermaidFile(fp, escrow.Lifecycle())

	default:
		fmt.Println("Missing or wrong argument: fsm must be one of:")
		fmt.Println("\tescrow")
	}

	return nil
}

func writeMermaidFile(filename string, states fsm.States) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	var b bytes.Buffer
	writeMermaid(&b, states)

	_, err = f.Write(b.Bytes())

	return err
}

// writeMermaid renders the states as a mermaid state diagram. States and
// their transitions are sorted so the output is stable.
func writeMermaid(w io.Writer, states fsm.States) {
	fmt.Fprint(w, "```mermaid\nstateDiagram-v2\n")

	for _, state := range sortedKeys(states) {
		edges := states[fsm.StateType(state)]
		// write state name
		if len(state) > 0 {
			fmt.Fprintf(w, "%s\n", state)
		} else {
			state = "[*]"
		}

		events := make([]string, 0, len(edges.Transitions))
		for event := range edges.Transitions {
			events = append(events, string(event))
		}
		sort.Strings(events)

		// write transitions
		for _, event := range events {
			target := edges.Transitions[fsm.EventType(event)]
			fmt.Fprintf(w, "%s --> %s: %s\n", state, target, event)
		}
	}

	fmt.Fprint(w, "```")
}

func sortedKeys(m fsm.States) []string {
	keys := make([]string, len(m))
	i := 0
	for k := range m {
		keys[i] = string(k)
		i++
	}
	sort.Strings(keys)
	return keys
}
