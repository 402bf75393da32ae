package main

import "github.com/lmarques/tutorchat/internal/commands"

func main() {
	commands.Execute()
}
