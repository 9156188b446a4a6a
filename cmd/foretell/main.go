package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/foretell-app/foretell/console"
	"github.com/foretell-app/foretell/log/zerolog/writer"
	"github.com/rs/zerolog/log"
)

const (
	VERSION = "1.0.0"
)

// CliArgs command-line options
type CliArgs struct {
	ConfigFile  *string
	Store       *string
	Debug       *bool
	ShowVersion *bool
}

var cliArgs = &CliArgs{
	ConfigFile:  flag.String("c", "foretell.json", "Config file"),
	Store:       flag.String("store", "", "Store backend: sqlite, redis or memory"),
	Debug:       flag.Bool("debug", false, "Debug logging"),
	ShowVersion: flag.Bool("version", false, "Show version"),
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: foretell [flags] <command> [args]\n\ncommands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(out, "  %-32s %s\n", commands[name].usage, commands[name].help)
	}
	fmt.Fprintf(out, "\nflags:\n")
	flag.PrintDefaults()
}

func main() {
	writer.UseDefaultWriter()
	flag.Usage = usage
	flag.Parse()

	if *cliArgs.ShowVersion {
		fmt.Printf("foretell %s\n", VERSION)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	printer := console.NewPrinter()
	app, err := NewApplication(cliArgs, printer)
	if err != nil {
		log.Err(err).Msg("initialization failed")
		os.Exit(1)
	}
	if err = app.Run(flag.Arg(0), flag.Args()[1:]); err != nil {
		printer.Error("%s", err.Error())
		os.Exit(1)
	}
}
