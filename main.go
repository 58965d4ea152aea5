package main

import (
	"os"

	"github.com/dersual/Focus-Friendship-MVP/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
