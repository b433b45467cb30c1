// Package main is the single-binary entrypoint for scribed.
package main

import "github.com/scribe-audio/scribed/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
