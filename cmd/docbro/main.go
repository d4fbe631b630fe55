// Command docbro is the entrypoint for the documentation crawler CLI.
package main

import (
	cmd "github.com/behemotion/docbro/internal/cli"
)

func main() {
	cmd.Execute()
}
