package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pipeconf/pipeconf/cmd"
	"github.com/pipeconf/pipeconf/internal/buildinfo"
	"github.com/pipeconf/pipeconf/internal/conf"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=..."
var (
	version   = "dev"
	commit    string
	buildDate string
)

func main() {
	info := buildinfo.NewContext(version, buildDate, commit)
	settings := &conf.Settings{Version: info.Version()}

	rootCmd := cmd.RootCommand(settings, info)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
