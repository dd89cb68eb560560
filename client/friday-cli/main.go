package main

import "Friday/client/friday-cli/cmd"

func main() {
	cmd.Execute()
}
