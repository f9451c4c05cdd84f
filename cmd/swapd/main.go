package main

import (
	"fmt"
	"os"

	"github.com/lightninglabs/xswap/swapd"
)

func main() {
	if err := swapd.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
