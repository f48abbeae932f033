package main

import "github.com/fidlab/quadmatch/cmd/quadmatch/cmd"

func main() {
	cmd.Execute()
}
