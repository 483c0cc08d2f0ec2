// Package main is the single-binary entrypoint for pulse.
package main

import "github.com/pulsefit/pulse/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
