// Command researchctl runs research jobs in-process and talks to a running
// persona-research service.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "researchctl",
		Usage: "customer persona research from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to YAML config file", EnvVars: []string{"RESEARCH_CONFIG"}},
			&cli.BoolFlag{Name: "dev", Usage: "console logging"},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run one job in-process and print the persona",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "website", Required: true, Usage: "product website URL"},
					&cli.StringFlag{Name: "marketplace", Usage: "marketplace product URL (optional)"},
					&cli.StringFlag{Name: "keywords", Required: true, Usage: `comma separated, e.g. "grounding sheets, earthing sheets"`},
					&cli.StringSliceFlag{Name: "competitor", Usage: "competitor URL, repeatable"},
					&cli.DurationFlag{Name: "wait", Value: 20 * time.Minute, Usage: "give up waiting after this long"},
					&cli.BoolFlag{Name: "json", Usage: "print the job as JSON"},
				},
				Action: RunAction,
			},
			{
				Name:      "status",
				Usage:     "show per-source status of a job on a running server",
				ArgsUsage: "<job-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Value: "http://localhost:8080", EnvVars: []string{"RESEARCH_SERVER"}},
					&cli.StringFlag{Name: "token", EnvVars: []string{"RESEARCH_TOKEN"}, Usage: "bearer token, required with --debug"},
					&cli.BoolFlag{Name: "debug", Usage: "dump raw collector results"},
				},
				Action: StatusAction,
			},
			{
				Name:  "token",
				Usage: "mint an operator token for the protected endpoints",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Value: "operator"},
				},
				Action: TokenAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
