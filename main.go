package main

import "github.com/lepinkainen/bookpipe/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
