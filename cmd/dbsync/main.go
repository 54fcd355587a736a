package main

import (
	"os"

	"github.com/ballee/dbsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
