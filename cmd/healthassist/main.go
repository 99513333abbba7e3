package main

import (
	"os"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
