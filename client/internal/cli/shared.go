package cli

import (
	"context"
	"errors"
	"sync"

	"github.com/mirrormap/mirrormap/client/internal/config"
	"github.com/mirrormap/mirrormap/client/internal/rtclient"
)

// opts holds the parsed root option set. It is stored before parsing
// begins so whichever sub-command executes can reach the flag
// overrides.
var opts *Options

func setOptions(o *Options) { opts = o }

var (
	cfgOnce sync.Once
	cfgInst *config.Config
	cfgErr  error
)

// loadConfig resolves the effective configuration once per invocation:
// the YAML file when -f was given, built-in defaults otherwise, with
// the endpoint and doc flags overriding either.
func loadConfig() (*config.Config, error) {
	cfgOnce.Do(func() {
		if opts != nil && opts.Config != "" {
			cfgInst, cfgErr = config.Load(opts.Config)
		} else {
			cfgInst = config.Default()
		}
		if cfgErr != nil {
			return
		}
		if opts != nil {
			if opts.Endpoint != "" {
				cfgInst.Endpoint = opts.Endpoint
			}
			if opts.Doc != "" {
				cfgInst.Doc = opts.Doc
			}
		}
	})
	return cfgInst, cfgErr
}

var (
	sessOnce sync.Once
	sessInst *rtclient.Client
	sessErr  error
)

// dialSession attaches to the configured document once per invocation.
// Callers must closeSession before returning so queued writes flush.
func dialSession(ctx context.Context) (*rtclient.Client, error) {
	sessOnce.Do(func() {
		cfg, err := loadConfig()
		if err != nil {
			sessErr = err
			return
		}
		if cfg.Endpoint == "" {
			sessErr = errors.New("endpoint is required: pass -e or set it in the config file")
			return
		}
		if cfg.Doc == "" {
			sessErr = errors.New("doc is required: pass -d or set it in the config file")
			return
		}
		var key string
		if cfg.Auth.Mode == "apikey" {
			key = cfg.Auth.Key()
		}
		sessInst, sessErr = rtclient.Dial(ctx, rtclient.Options{
			Endpoint:         cfg.Endpoint,
			Doc:              cfg.Doc,
			APIKey:           key,
			AuthHeader:       cfg.Auth.Header,
			HandshakeTimeout: cfg.Timeouts.Dial,
		})
	})
	return sessInst, sessErr
}

// closeSession flushes and closes the dialed session, if any.
func closeSession() {
	if sessInst != nil {
		sessInst.Close() //nolint:errcheck
	}
}
