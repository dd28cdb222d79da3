package main

import (
	"os"

	"github.com/kirillkom/docsearch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
