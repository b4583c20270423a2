package main

import (
	"os"

	"github.com/PauloHFS/otel-chat-tools/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
