package main

import (
	"fmt"
	"os"

	"github.com/deusflow/hnsummary/internal/logger"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	defer logger.Close()

	if err := newCLIApp().Run(os.Args); err != nil {
		logger.Error("hnsummary failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		logger.Close()
		os.Exit(1)
	}
}
