package main

import "ais-trajectory/cmd/aistraj/cmd"

func main() {
	cmd.Execute()
}
