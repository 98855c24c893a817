package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dmitrijs2005/memorelay/internal/client/config"
	"github.com/dmitrijs2005/memorelay/internal/cryptox"
	"github.com/dmitrijs2005/memorelay/internal/flagx"
	"github.com/dmitrijs2005/memorelay/internal/netx"
)

const (
	// MaxMemoBytes is the plaintext limit accepted by the relay.
	MaxMemoBytes = 2000
	// MaxSealAttempts bounds retries with a fresh identifier on collision.
	MaxSealAttempts = 5
)

const usage = `usage: memorelay <command> [flags]

commands:
  seal              read a memo from stdin and print a one-time link
  open <link>       fetch, burn and decrypt a memo
  open <id> [code]  same, with the identifier and passcode given separately
  status <id|link>  report whether a memo is still waiting
  help              show this message

flags:
  -a url    relay base URL
  -n int    identifier length (4-32)
  -k int    passcode length (4-32)
  -x list   charset for generated codes (digits,lower,upper)
  -t int    request timeout in seconds
  -c path   JSON config file
`

type App struct {
	config     *config.Config
	client     *netx.MemoClient
	alphabet   string
	iterations int
	in         io.Reader
	out        io.Writer
	errOut     io.Writer
}

// NewApp builds a client application bound to stdin/stdout.
func NewApp(c *config.Config) (*App, error) {
	client, err := netx.NewMemoClient(c.ServerURL, &http.Client{Timeout: c.RequestTimeout})
	if err != nil {
		return nil, err
	}
	return newApp(c, client, os.Stdin, os.Stdout, os.Stderr)
}

func newApp(c *config.Config, client *netx.MemoClient, in io.Reader, out, errOut io.Writer) (*App, error) {
	alphabet, err := c.Alphabet()
	if err != nil {
		return nil, err
	}
	return &App{
		config:     c,
		client:     client,
		alphabet:   alphabet,
		iterations: cryptox.DefaultIterations,
		in:         in,
		out:        out,
		errOut:     errOut,
	}, nil
}

// Run executes the command named in args. Configuration flags may appear
// anywhere and are ignored here.
func (a *App) Run(ctx context.Context, args []string) error {
	cmd, rest := flagx.SplitCommand(positional(args))

	switch cmd {
	case "seal":
		link, err := a.Seal(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, link)
		return nil
	case "open":
		return a.Open(ctx, rest)
	case "status":
		return a.Status(ctx, rest)
	case "", "help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.errOut, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// positional drops configuration flags and their values from args.
func positional(args []string) []string {
	owned := make(map[string]struct{}, len(config.Flags))
	for _, f := range config.Flags {
		owned[f] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if _, ok := owned[name]; ok {
				continue
			}
		}
		if _, ok := owned[arg]; ok {
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}
