package main

import "github.com/mcoot/lobbysync/internal/cli"

func main() {
	cli.Execute()
}
