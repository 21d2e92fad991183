package cli

import "context"

// SetCmd writes one key of the root map.
type SetCmd struct {
	Key   string `short:"k" long:"key" required:"true" description:"key to write"`
	Value string `short:"v" long:"value" required:"true" description:"value, JSON or plain string"`
}

func (c *SetCmd) Execute(_ []string) error {
	val, err := parseValue(c.Value)
	if err != nil {
		return err
	}

	sess, err := dialSession(context.Background())
	if err != nil {
		return err
	}
	defer closeSession()

	root, err := sess.Root()
	if err != nil {
		return err
	}
	return root.Set(c.Key, val)
}
