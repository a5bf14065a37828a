package main

import (
	"os"

	"github.com/prateekshukla17/XenCRM-Backend/cmd/xenctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
