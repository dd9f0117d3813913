package main

import (
	"github.com/sw33tLie/riderpoint/cmd"
)

func main() {
	cmd.Execute()
}
