package main

import "github.com/nevisdale/chip8run/cmd"

func main() {
	cmd.Execute()
}
