package main

import "github.com/ppiankov/stagewright/internal/cli"

func main() {
	cli.Execute()
}
