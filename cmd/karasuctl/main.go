package main

import "github.com/karasuemlak/backend/internal/cli"

func main() {
	cli.Execute()
}
