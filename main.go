package main

import "github.com/nsyszr/eventhub/cmd"

func main() {
	cmd.Execute()
}
