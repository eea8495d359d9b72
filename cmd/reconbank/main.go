package main

import "github.com/rmorelos/reconbank/internal/cli"

func main() {
	cli.Execute()
}
