package main

import "smartscan/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
