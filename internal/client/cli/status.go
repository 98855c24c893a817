package cli

import (
	"context"
	"fmt"
)

// Status reports whether a memo is still waiting to be read. It does not
// consume the memo.
func (a *App) Status(ctx context.Context, args []string) error {
	id, _, err := target(args)
	if err != nil {
		return err
	}

	present, err := a.client.Head(ctx, id)
	if err != nil {
		return err
	}

	if present {
		fmt.Fprintf(a.out, "%s: waiting to be read\n", id)
	} else {
		fmt.Fprintf(a.out, "%s: not found or already destroyed\n", id)
	}
	return nil
}
