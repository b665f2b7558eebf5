// Command invoicectl validates, recomputes and renders invoice documents offline.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "invoicectl",
		Usage: "work with tour expense invoice documents from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rate", Value: "400", Usage: "daily allowance per day", EnvVars: []string{"DA_RATE_PER_DAY"}},
			&cli.StringFlag{Name: "locale", Value: "en-IN", Usage: "currency locale for amounts", EnvVars: []string{"CURRENCY_LOCALE"}},
			&cli.BoolFlag{Name: "verbose", Usage: "log progress to stderr"},
		},
		Commands: []*cli.Command{
			validateCommand(),
			recomputeCommand(),
			renderCommand(),
			calcCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
