package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/jmylchreest/folio/internal/audio"
	"github.com/jmylchreest/folio/internal/config"
	"github.com/jmylchreest/folio/internal/contact"
	"github.com/jmylchreest/folio/internal/fade"
	"github.com/jmylchreest/folio/internal/notify"
	"github.com/jmylchreest/folio/internal/outbox"
	"github.com/jmylchreest/folio/internal/server"
)

// Options configures a Daemon.
type Options struct {
	Config     *config.Config
	ConfigPath string // Watched for hot reload; empty uses the default path
	OutboxPath string // Empty uses the default data path
	Clock      fade.Clock
	Logger     *slog.Logger

	// Sink receives controller states instead of the audio manager. Used by
	// tests to run without a sound device.
	Sink fade.Sink
}

// Daemon wires the ambience controller, playback, HTTP API and submission
// history together.
type Daemon struct {
	logger     *slog.Logger
	configPath string

	mu     sync.RWMutex
	cfg    *config.Config
	client *contact.Client

	controller    *fade.Controller
	audio         *audio.Manager
	outbox        *outbox.Store
	outboxWatcher *outbox.FileWatcher
	notifier      *notify.Notifier
	server        *server.Server
	watcher       *ConfigWatcher
}

// New creates a Daemon. Nothing runs until Run is called.
func New(opts Options) (*Daemon, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	d := &Daemon{
		logger:     logger,
		configPath: opts.ConfigPath,
		cfg:        cfg,
		client:     newClient(cfg, logger),
	}

	sink := opts.Sink
	if sink == nil {
		d.audio = audio.NewManager(cfg, logger.With("component", "audio"))
		sink = d.audio
	}
	d.controller = fade.New(cfg.Profile(), opts.Clock, sink, logger.With("component", "fade"))

	if cfg.Outbox.Enabled {
		path := opts.OutboxPath
		if path == "" {
			path = config.OutboxPath()
		}
		if err := d.openOutbox(path); err != nil {
			return nil, err
		}
	}

	var submissionNotifier server.Notifier
	if cfg.Notify.Enabled {
		n, err := notify.NewNotifier(logger.With("component", "notify"))
		if err != nil {
			logger.Warn("desktop notifications unavailable", "error", err)
		} else {
			d.notifier = n
			submissionNotifier = n
		}
	}

	d.server = server.New(server.Options{
		Controller:     d.controller,
		Submitter:      d,
		Outbox:         d.outbox,
		Notifier:       submissionNotifier,
		NoticeDuration: cfg.Contact.NoticeDuration.Duration(),
		Logger:         logger.With("component", "server"),
	})

	d.watcher = NewConfigWatcher(opts.ConfigPath, logger.With("component", "config"))
	d.watcher.SetReloadCallback(d.applyConfig)
	d.watcher.SetErrorCallback(func(err error) {
		d.logger.Warn("keeping previous configuration", "error", err)
	})

	return d, nil
}

func newClient(cfg *config.Config, logger *slog.Logger) *contact.Client {
	return contact.NewClient(cfg.Contact.Endpoint, cfg.Contact.Timeout.Duration(), nil, logger.With("component", "contact"))
}

func (d *Daemon) openOutbox(path string) error {
	persistence, err := outbox.NewJSONLPersistence(path)
	if err != nil {
		return fmt.Errorf("failed to open outbox: %w", err)
	}

	store := outbox.NewStore(persistence)
	if err := store.Hydrate(); err != nil {
		d.logger.Warn("failed to hydrate outbox", "error", err)
	}
	d.outbox = store

	watcher, err := outbox.NewFileWatcher(store, path, d.logger.With("component", "outbox"))
	if err != nil {
		d.logger.Warn("outbox watcher unavailable", "error", err)
		return nil
	}
	watcher.SetChangeCallback(func() {
		d.logger.Debug("outbox reloaded from disk", "count", store.Count())
	})
	d.outboxWatcher = watcher
	d.logger.Info("outbox initialized", "path", path, "count", store.Count())
	return nil
}

// Controller returns the ambience controller.
func (d *Daemon) Controller() *fade.Controller {
	return d.controller
}

// Outbox returns the submission store, or nil when the outbox is disabled.
func (d *Daemon) Outbox() *outbox.Store {
	return d.outbox
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Submit implements server.Submitter using the client for the current
// endpoint, so endpoint changes apply without a restart.
func (d *Daemon) Submit(ctx context.Context, form contact.Form) (*contact.Receipt, error) {
	d.mu.RLock()
	client := d.client
	d.mu.RUnlock()
	return client.Submit(ctx, form)
}

// Run starts every component and serves the API on the configured listen
// address until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", d.Config().Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.Config().Server.Listen, err)
	}
	return d.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (d *Daemon) Serve(ctx context.Context, listener net.Listener) error {
	defer d.shutdown()

	if d.audio != nil {
		if err := d.audio.Start(ctx); err != nil {
			d.logger.Warn("failed to start audio manager", "error", err)
		}
	}

	if err := d.watcher.Start(ctx, d.Config()); err != nil {
		d.logger.Warn("config hot-reload disabled", "error", err)
	}

	if d.outboxWatcher != nil {
		if err := d.outboxWatcher.Start(); err != nil {
			d.logger.Warn("outbox watcher disabled", "error", err)
		}
	}

	d.logger.Info("foliod ready", "addr", listener.Addr().String())
	return d.server.Serve(ctx, listener)
}

func (d *Daemon) shutdown() {
	d.controller.Close()
	d.watcher.Stop()

	var errs []error
	if d.outboxWatcher != nil {
		errs = append(errs, d.outboxWatcher.Stop())
	}
	if d.outbox != nil {
		errs = append(errs, d.outbox.Close())
	}
	if d.notifier != nil {
		errs = append(errs, d.notifier.Close())
	}
	if d.audio != nil {
		d.audio.Stop()
	}

	if err := errors.Join(errs...); err != nil {
		d.logger.Warn("error during shutdown", "error", err)
	}
	d.logger.Info("foliod stopped")
}

// applyConfig applies a hot-reloaded configuration. The listen address and
// outbox settings need a restart.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.mu.Lock()
	old := d.cfg
	d.cfg = cfg
	if cfg.Contact.Endpoint != old.Contact.Endpoint || cfg.Contact.Timeout != old.Contact.Timeout {
		d.client = newClient(cfg, d.logger)
	}
	d.mu.Unlock()

	d.controller.SetProfile(cfg.Profile())
	if d.audio != nil {
		d.audio.UpdateConfig(cfg)
	}

	if cfg.Server.Listen != old.Server.Listen {
		d.logger.Warn("listen address changed; restart foliod to apply", "listen", cfg.Server.Listen)
	}
	if cfg.Outbox.Enabled != old.Outbox.Enabled {
		d.logger.Warn("outbox setting changed; restart foliod to apply")
	}
	d.logger.Info("configuration applied", "endpoint", cfg.Contact.Endpoint)
}
