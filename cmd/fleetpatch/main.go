package main

import "github.com/oshokin/fleetpatch/cmd/fleetpatch/cmd"

func main() {
	cmd.Execute()
}
