package main

import (
	"os"

	"github.com/argusauth/argus/internal/cli"
	"github.com/argusauth/argus/internal/version"
)

func main() {
	cmd := cli.NewRootCommand(os.Stdout, cli.BuildInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildTime: version.BuildTime,
	})
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
