package main

import "vite.dev/core/cli"

func main() {
	cli.Execute()
}
