package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/wdb/iiifgate/cmd/gatectl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, commands.ErrDenied) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
