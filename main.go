package main

import "github.com/tidechart/tidechart/cmd"

func main() {
	cmd.Execute()
}
