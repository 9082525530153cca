// The main package for the pagelift executable.
package main

import (
	"github.com/pagelift/pagelift/cmd"
)

func main() {
	cmd.Execute()
}
