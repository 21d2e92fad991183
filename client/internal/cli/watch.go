package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mirrormap/mirrormap/client/internal/rtclient"
	"github.com/mirrormap/mirrormap/pkg/wire"
)

// WatchCmd streams every change other sessions make to the document
// until interrupted.
type WatchCmd struct {
	Presence bool `short:"p" long:"presence" description:"also print sessions joining and leaving"`
}

func (c *WatchCmd) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := dialSession(ctx)
	if err != nil {
		return err
	}
	defer closeSession()

	fmt.Printf("watching %s @ rev %d (ctrl-c to stop)\n", sess.Doc(), sess.Rev())

	conn := sess.Events().Connect(func(ev wire.Event) {
		fmt.Println(renderEvent(ev))
	})
	defer conn.Disconnect()

	if c.Presence {
		pconn := sess.PresenceChanged().Connect(func(ev rtclient.PresenceEvent) {
			switch {
			case ev.Joined != "":
				fmt.Printf("presence: %s joined (%d peers)\n", ev.Joined, len(ev.Sessions))
			case ev.Left != "":
				fmt.Printf("presence: %s left (%d peers)\n", ev.Left, len(ev.Sessions))
			}
		})
		defer pconn.Disconnect()
	}

	select {
	case <-ctx.Done():
		return nil
	case <-sess.Done():
		return sess.Err()
	}
}
