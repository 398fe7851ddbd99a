package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/wikiedits/internal/cli"
	perr "github.com/ppiankov/wikiedits/internal/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if perr.IsCode(err, perr.ErrorCodeValidation) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
