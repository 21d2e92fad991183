package cli

import (
	"context"
	"fmt"
	"sort"
)

// KeysCmd lists the keys of the root map, one per line.
type KeysCmd struct{}

func (c *KeysCmd) Execute(_ []string) error {
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

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	// Sorting for deterministic output (helpful for scripting).
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}
