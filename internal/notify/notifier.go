// Package notify raises a desktop notification when foliod relays a
// contact submission.
package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/folio/internal/contact"
)

// D-Bus notification service constants.
const (
	DBusName      = "org.freedesktop.Notifications"
	DBusPath      = "/org/freedesktop/Notifications"
	DBusInterface = "org.freedesktop.Notifications"
)

const (
	appName       = "folio"
	appIcon       = "mail-message-new"
	maxBodyLength = 200
)

// DefaultMinInterval is the quiet period between notifications for the same
// sender.
const DefaultMinInterval = 30 * time.Second

// Notifier sends notifications to the session notification daemon.
type Notifier struct {
	mu     sync.Mutex
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger

	// Rate limiting per sender address
	lastNotifyTime map[string]time.Time
	minInterval    time.Duration
	now            func() time.Time
}

// NewNotifier connects to the session bus.
func NewNotifier(logger *slog.Logger) (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	n := newNotifier(conn.Object(DBusName, DBusPath), logger)
	n.conn = conn
	return n, nil
}

func newNotifier(obj dbus.BusObject, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		obj:            obj,
		logger:         logger,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    DefaultMinInterval,
		now:            time.Now,
	}
}

// SetMinInterval sets the minimum interval between notifications for the
// same sender. Zero disables rate limiting.
func (n *Notifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Submission notifies about a relayed contact form and returns the
// notification ID assigned by the daemon. Repeat messages from one sender
// within the minimum interval are dropped and return ID 0.
func (n *Notifier) Submission(form contact.Form) (uint32, error) {
	form = form.Normalize()

	if !n.allow(strings.ToLower(form.Email)) {
		n.logger.Debug("notification rate limited", "email", form.Email)
		return 0, nil
	}

	summary := "New message from " + form.Name
	body := form.Email + "\n" + truncate(form.Message, maxBodyLength)
	return n.Notify(summary, body)
}

// Notify sends a plain notification with the daemon's default timeout.
func (n *Notifier) Notify(summary, body string) (uint32, error) {
	call := n.obj.Call(DBusInterface+".Notify", 0,
		appName,
		uint32(0), // replaces_id
		appIcon,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(1))},
		int32(-1),
	)

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("failed to send notification: %w", err)
	}

	n.logger.Debug("desktop notification sent", "id", id, "summary", summary)
	return id, nil
}

func (n *Notifier) allow(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if last, ok := n.lastNotifyTime[key]; ok && now.Sub(last) < n.minInterval {
		return false
	}

	// Drop stale keys so the map does not grow without bound.
	for k, t := range n.lastNotifyTime {
		if now.Sub(t) >= n.minInterval {
			delete(n.lastNotifyTime, k)
		}
	}
	n.lastNotifyTime[key] = now
	return true
}

// Close closes the bus connection.
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

// truncate shortens s to at most max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
