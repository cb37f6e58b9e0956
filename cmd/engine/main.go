package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var version = "dev"

type Globals struct {
	DataDir  string `help:"Engine data directory" env:"INTERNSHIP_DATA_DIR" default:"." type:"path"`
	LogLevel string `help:"Override logging.level (debug, info, warn, error)" name:"log-level"`
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the HTTP API and the mailbox poller"`
	Run     RunCmd     `cmd:"" help:"Process the mailbox once and print the report"`
	Secret  SecretCmd  `cmd:"" help:"Manage the stored IMAP password"`
	Config  ConfigCmd  `cmd:"" help:"Configuration helpers"`
	Version VersionCmd `cmd:"" help:"Show version"`
}

type VersionCmd struct{}

func (VersionCmd) Run() error {
	fmt.Println(version)
	return nil
}

func main() {
	var c CLI
	parser := kong.Must(&c,
		kong.Name("engine"),
		kong.Description("Turns internship application emails into candidate records"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := ctx.Run(&c.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
