package main

import "intramind/internal/cli"

func main() {
	cli.Execute()
}
