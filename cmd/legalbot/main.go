package main

import (
	"os"

	"github.com/PVL-Linh/LegalBot-AI/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
