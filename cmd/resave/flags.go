package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/leafsii/kv-resave/internal/resave"
)

type options struct {
	cursor  resave.Cursor
	pattern string
	policy  resave.RewritePolicy
	dryRun  bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := pflag.NewFlagSet("resave", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: resave [--cursor N] [--pattern GLOB] [--ttl SECONDS] [--dry]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Re-saves every value under the configured key prefix, optionally with a new TTL.")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	cursor := fs.Uint64P("cursor", "c", 0, "resume the scan from this cursor")
	pattern := fs.StringP("pattern", "p", "*", "glob pattern matched inside the key prefix")
	ttl := fs.StringP("ttl", "t", "", "new TTL in seconds; existing TTLs are kept when omitted")
	dry := fs.BoolP("dry", "d", false, "count matching keys without reading or writing them")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	policy := resave.PreserveTTL()
	if fs.Changed("ttl") {
		if strings.TrimSpace(*ttl) == "" {
			return options{}, fmt.Errorf("--ttl needs a value in seconds")
		}
		var err error
		policy, err = resave.ParseTTL(*ttl)
		if err != nil {
			return options{}, err
		}
	}

	return options{
		cursor:  resave.Cursor(*cursor),
		pattern: *pattern,
		policy:  policy,
		dryRun:  *dry,
	}, nil
}
