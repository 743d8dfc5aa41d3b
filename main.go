package main

import (
	"RPGMixer/cmd"
)

func main() {
	// Cobra exits the process itself on command errors.
	cmd.Execute()
}
