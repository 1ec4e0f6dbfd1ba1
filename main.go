// The main package for the harvester executable.
package main

import (
	"github.com/1-icenine/eci-tracker/cmd"
)

func main() {
	cmd.Execute()
}
