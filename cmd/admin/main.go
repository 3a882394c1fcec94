package main

import (
	"os"

	"github.com/basylab/balug/cmd/admin/cmd"
)

func main() {
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
