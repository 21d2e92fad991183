package cli

import (
	"context"
	"fmt"
)

// ClearCmd deletes every key of the root map, one delete per key. The
// removals are individual ops, not a transaction; other sessions see
// them one by one.
type ClearCmd struct{}

func (c *ClearCmd) Execute(_ []string) error {
	sess, err := dialSession(context.Background())
	if err != nil {
		return err
	}
	defer closeSession()

	root, err := sess.Root()
	if err != nil {
		return err
	}
	entries, _, err := root.Entries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := root.Delete(e.Key); err != nil {
			return fmt.Errorf("delete %q: %w", e.Key, err)
		}
	}
	fmt.Printf("cleared %d keys\n", len(entries))
	return nil
}
