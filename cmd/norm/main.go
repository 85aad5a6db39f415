// Package main provides the norm CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	app := &cli.Command{
		Name:    "norm",
		Version: version,
		Usage:   "Neo4j object-graph mapping tool",
		Commands: []*cli.Command{
			pingCommand(),
			inspectCommand(),
		},
	}

	err := app.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
