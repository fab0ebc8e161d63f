package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dalemusser/contactrelay/app"
	"github.com/dalemusser/contactrelay/config"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := config.Flags("contactrelay")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	path, _ := fs.GetString("config")
	printConfig, _ := fs.GetBool("print-config")

	err := app.Run(context.Background(), app.Options{
		ConfigPath:  path,
		PrintConfig: printConfig,
		Flags:       fs,
		Stdout:      os.Stdout,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "contactrelay:", err)
		return 1
	}
	return 0
}
