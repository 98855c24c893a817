package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/memorelay/internal/flagx"
)

// Flags lists the command-line flags owned by the client configuration,
// including the JSON config path flags.
var Flags = []string{"-a", "-n", "-k", "-x", "-t", "-c", "-config"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   relay base URL
//	-n int      identifier length (4-32)
//	-k int      passcode length (4-32)
//	-x string   charset list, e.g. "digits,upper"
//	-t int      request timeout in seconds
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, so sub-commands and their arguments pass through.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], Flags[:5])

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "relay base URL")
	fs.IntVar(&cfg.IDLength, "n", cfg.IDLength, "identifier length")
	fs.IntVar(&cfg.KeyLength, "k", cfg.KeyLength, "passcode length")
	fs.StringVar(&cfg.Charset, "x", cfg.Charset, "charset list (digits,lower,upper)")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
