package main

import (
	"os"

	"github.com/mirrormap/mirrormap/client/internal/cli"
)

func main() {
	cli.Run(os.Args[1:])
}
