package main

import (
	"os"

	"github.com/ksfraser/ksf-reports/cmd/ksf-reports/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
