package main

import (
	"github.com/axintera/axctl/pkg/cli"
)

func main() {
	cli.Execute()
}
