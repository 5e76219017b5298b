package main

import "github.com/cutzel/oracle-postprocess/cmd"

func main() {
	cmd.Execute()
}
