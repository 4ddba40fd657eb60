// The main package for the lpsn executable.
package main

import (
	"github.com/JakeFAU/lpsn-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
