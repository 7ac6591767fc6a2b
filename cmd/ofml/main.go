package main

import "github.com/INSPIRATIONlabs/ofmlgo/internal/cli"

func main() {
	cli.Execute()
}
