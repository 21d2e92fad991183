package cli

import (
	"context"
	"fmt"
)

// GetCmd prints the value stored under one key of the root map.
type GetCmd struct {
	Key string `short:"k" long:"key" required:"true" description:"key to read"`
}

func (c *GetCmd) Execute(_ []string) error {
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
		if e.Key == c.Key {
			fmt.Println(renderValue(e.Value))
			return nil
		}
	}
	return fmt.Errorf("key %q not found in document %q", c.Key, sess.Doc())
}
