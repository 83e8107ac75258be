// Command ascs-log reads ASCS protocol captures.
//
// Captures are written by ascs-sim with the -log flag, or by any server
// whose Config.ProtocolLogger is a log.FileLogger.
//
// Usage:
//
//	ascs-log <command> [flags] <file.alog>
//
// Every command accepts the same selection flags: -conn, -server, -ase,
// -opcode, -phase, -layer, -direction, -category, -since, -until and
// -failures.
//
// Examples:
//
//	# Everything that went wrong on connection 64
//	ascs-log view -conn 64 -failures capture.alog
//
//	# The life of ASE 1 across a session
//	ascs-log timeline -ase 1 capture.alog
//
//	# Enable operations as CSV
//	ascs-log export -format csv -opcode enable capture.alog
//
//	# Keep only the handover exchange
//	ascs-log filter -layer handover -o handover.alog capture.alog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mash-protocol/ascs-go/cmd/ascs-log/commands"
	"github.com/mash-protocol/ascs-go/pkg/log"
)

type command struct {
	name    string
	summary string
	// flags registers command-specific flags and returns the runner.
	flags func(fs *flag.FlagSet) func(path string, filter log.Filter) error
}

var commandTable = []command{
	{
		name:    "view",
		summary: "Print events in readable form",
		flags: func(*flag.FlagSet) func(string, log.Filter) error {
			return func(path string, f log.Filter) error { return commands.RunView(path, f, os.Stdout) }
		},
	},
	{
		name:    "timeline",
		summary: "Show each ASE's state transitions and operation outcomes",
		flags: func(*flag.FlagSet) func(string, log.Filter) error {
			return func(path string, f log.Filter) error { return commands.RunTimeline(path, f, os.Stdout) }
		},
	},
	{
		name:    "stats",
		summary: "Summarize connections, operations and handovers",
		flags: func(*flag.FlagSet) func(string, log.Filter) error {
			return func(path string, f log.Filter) error { return commands.RunStats(path, f, os.Stdout) }
		},
	},
	{
		name:    "export",
		summary: "Export events as JSON lines or CSV",
		flags: func(fs *flag.FlagSet) func(string, log.Filter) error {
			format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
			output := fs.String("o", "", "Output file (default: stdout)")
			return func(path string, f log.Filter) error {
				var w io.Writer = os.Stdout
				if *output != "" {
					file, err := os.Create(*output)
					if err != nil {
						return err
					}
					defer file.Close()
					w = file
				}
				return commands.RunExport(path, *format, f, w)
			}
		},
	},
	{
		name:    "filter",
		summary: "Write the selected events to a new capture",
		flags: func(fs *flag.FlagSet) func(string, log.Filter) error {
			output := fs.String("o", "", "Output capture (required)")
			return func(path string, f log.Filter) error { return commands.RunFilter(path, *output, f, os.Stdout) }
		},
	},
}

func usage(w io.Writer) {
	var b strings.Builder
	b.WriteString("ascs-log - ASCS protocol capture reader\n\nUsage:\n  ascs-log <command> [flags] <file.alog>\n\nCommands:\n")
	for _, c := range commandTable {
		fmt.Fprintf(&b, "  %-9s %s\n", c.name, c.summary)
	}
	b.WriteString("\nUse \"ascs-log <command> -help\" for the flags of a command.\n")
	fmt.Fprint(w, b.String())
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "-h", "-help", "--help", "help":
		usage(os.Stdout)
		return
	}
	for _, c := range commandTable {
		if c.name == name {
			os.Exit(run(c, os.Args[2:]))
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
	usage(os.Stderr)
	os.Exit(1)
}

func run(c command, args []string) int {
	fs := flag.NewFlagSet(c.name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "ascs-log %s - %s\n\nUsage:\n  ascs-log %s [flags] <file.alog>\n\nFlags:\n", c.name, c.summary, c.name)
		fs.PrintDefaults()
	}

	var q commands.Query
	q.Register(fs)
	runner := c.flags(fs)

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: one log file path required")
		fs.Usage()
		return 1
	}
	filter, err := q.Filter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := runner(fs.Arg(0), filter); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
