package main

import "github.com/jamesainslie/go-nnsplit/internal/cli"

func main() {
	cli.Execute()
}
