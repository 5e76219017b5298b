package cmd

import "github.com/mitchellh/colorstring"

func printTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func printSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func printError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}
