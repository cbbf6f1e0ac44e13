// The main package for the indicatorfeed executable.
package main

import (
	"github.com/JakeFAU/indicator-feed/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
