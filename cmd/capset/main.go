package main

import "capset/cmd/capset/cmd"

func main() {
	cmd.Execute()
}
