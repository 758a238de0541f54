// Package main is the entry point for the coverguard CLI.
package main

import "github.com/mouse-blink/coverguard/cmd"

func main() {
	cmd.Execute()
}
