package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
)

// Run is the entry point for the CLI. The function is intentionally
// separated from the main package to keep the commands usable from
// tests as well.
func Run(args []string) {
	o := &Options{}
	var first string
	if len(args) > 0 {
		first = args[0]
	}
	o.Init(first)
	setOptions(o)

	parser := flags.NewParser(o, flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = func(cmd flags.Commander, cargs []string) error {
		// Runs after flags are bound, so --verbose is visible here.
		configureLogging(o.Verbose)
		if cmd == nil {
			return nil
		}
		return cmd.Execute(cargs)
	}

	if _, err := parser.ParseArgs(args); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			fmt.Println(err)
			return
		}
		fmt.Fprintln(os.Stderr, "ctl:", err)
		os.Exit(1)
	}
}

// configureLogging quiets the connection layer unless --verbose is
// set. Command output goes to stdout, logs to stderr, so piping the
// output stays clean either way.
func configureLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
