package cli

import "context"

// DelCmd removes one key of the root map. Deleting a key that is not
// there succeeds without effect, matching the document semantics.
type DelCmd struct {
	Key string `short:"k" long:"key" required:"true" description:"key to delete"`
}

func (c *DelCmd) Execute(_ []string) error {
	sess, err := dialSession(context.Background())
	if err != nil {
		return err
	}
	defer closeSession()

	root, err := sess.Root()
	if err != nil {
		return err
	}
	return root.Delete(c.Key)
}
