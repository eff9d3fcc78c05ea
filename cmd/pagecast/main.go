package main

import "github.com/pagecast/pagecast/cmd/pagecast/commands"

func main() {
	commands.Execute()
}
