// The main package for the teamscraper executable.
package main

import (
	"github.com/JakeFAU/teams-titles-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
