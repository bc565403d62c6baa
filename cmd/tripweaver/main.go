package main

import "github.com/rhymeas/tripweaver/cmd/tripweaver/cli"

func main() {
	cli.Execute()
}
