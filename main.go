package main

import "github.com/licznik-cli/licznik/cmd"

func main() {
	cmd.Execute()
}
