package main

import (
	"fmt"
	"os"

	"github.com/noah-isme/church-news-api/cmd/extractor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
