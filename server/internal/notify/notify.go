package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mirrormap/mirrormap/server/internal/config"
)

// Event kinds.
const (
	KindDocCreated = "doc_created"
	KindDocEvicted = "doc_evicted"
)

const defaultCooldown = 5 * time.Minute

// Event is the payload delivered to webhook targets.
type Event struct {
	Kind string    `json:"kind"`
	Doc  string    `json:"doc"`
	At   time.Time `json:"at"`
}

// Notifier fans document lifecycle events out to webhook targets.
//
// Notifier is safe for concurrent use.
type Notifier struct {
	mu       sync.Mutex
	webhooks []config.WebhookConfig
	cooldown time.Duration
	last     map[string]time.Time // key: "kind:doc"

	now    func() time.Time
	client *http.Client
}

// New creates a Notifier from the server notify configuration.
// A Notifier with no webhooks is valid; every emit becomes a no-op.
func New(cfg config.NotifyConfig) *Notifier {
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultCooldown
	}
	return &Notifier{
		webhooks: cfg.Webhooks,
		cooldown: cd,
		last:     make(map[string]time.Time),
		now:      time.Now,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// DocCreated reports that a document was created on first attach.
func (n *Notifier) DocCreated(doc string) { n.emit(KindDocCreated, doc) }

// DocEvicted reports that an idle document was evicted from memory.
func (n *Notifier) DocEvicted(doc string) { n.emit(KindDocEvicted, doc) }

// Reload swaps in new webhook targets and cooldown.
// Deliveries already in flight keep the targets they started with.
func (n *Notifier) Reload(cfg config.NotifyConfig) {
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultCooldown
	}
	n.mu.Lock()
	n.webhooks = cfg.Webhooks
	n.cooldown = cd
	n.mu.Unlock()
}

// emit applies the cooldown and triggers asynchronous delivery.
func (n *Notifier) emit(kind, doc string) {
	key := kind + ":" + doc
	now := n.now()

	n.mu.Lock()
	targets := n.webhooks
	if len(targets) == 0 {
		n.mu.Unlock()
		return
	}
	if now.Sub(n.last[key]) < n.cooldown {
		n.mu.Unlock()
		slog.Debug("notify: suppressed by cooldown", "kind", kind, "doc", doc)
		return
	}
	n.last[key] = now
	n.mu.Unlock()

	ev := Event{Kind: kind, Doc: doc, At: now.UTC()}
	go n.deliver(targets, ev)
}

// deliver sends ev to all targets. Reload replaces the slice wholesale,
// so holding a snapshot here is safe. Failed posts are logged and
// otherwise dropped.
func (n *Notifier) deliver(targets []config.WebhookConfig, ev Event) {
	for _, wh := range targets {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(url, ev)
		default:
			err = n.sendHTTP(url, ev)
		}

		if err != nil {
			slog.Error("notify: webhook delivery failed",
				"webhook", wh.Name,
				"kind", ev.Kind,
				"doc", ev.Doc,
				"err", err,
			)
		} else {
			slog.Debug("notify: webhook delivered",
				"webhook", wh.Name,
				"kind", ev.Kind,
				"doc", ev.Doc,
			)
		}
	}
}

func (n *Notifier) sendSlack(url string, ev Event) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* document %q", kindLabel(ev.Kind), ev.Doc),
	})
	return n.post(url, body)
}

func (n *Notifier) sendHTTP(url string, ev Event) error {
	body, _ := json.Marshal(map[string]interface{}{"event": ev})
	return n.post(url, body)
}

func (n *Notifier) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func kindLabel(kind string) string {
	switch kind {
	case KindDocCreated:
		return "[CREATED]"
	case KindDocEvicted:
		return "[EVICTED]"
	default:
		return "[EVENT]"
	}
}
