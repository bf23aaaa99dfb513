// main.go - Einstiegspunkt des Konverters
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pykeio/hf2pyke/cmd"
)

func main() {
	if err := cmd.NewCLI().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
