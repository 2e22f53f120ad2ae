package main

import (
	"fmt"
	"os"

	"github.com/RichardoC/keymap/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "keymap:", err)
		os.Exit(1)
	}
}
