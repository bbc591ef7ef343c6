package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := Execute(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mtopctl:", err)
		os.Exit(1)
	}
}
