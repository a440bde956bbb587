// Command gsclock runs and inspects the simulation clock.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/sarchlab/gsclock/gsclock/cmd"
)

func main() {
	atexit.Exit(cmd.Execute())
}
