package main

import "github.com/vietddude/flakewatch/internal/cli"

func main() {
	cli.Execute()
}
