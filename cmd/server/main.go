package main

import "rodeoai/internal/cli"

func main() {
	cli.Execute()
}
