package klipper

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	busName    = "org.kde.klipper"
	iface      = "org.kde.klipper.klipper"
	objectPath = dbus.ObjectPath("/klipper")

	methodHistory     = iface + ".getClipboardHistoryMenu"
	methodClear       = iface + ".clearClipboardHistory"
	methodSetContents = iface + ".setClipboardContents"
	methodGetContents = iface + ".getClipboardContents"

	signalUpdated = "clipboardHistoryUpdated"
)

// Gateway is the daemon's view of the clipboard manager. All calls are
// bounded by a timeout; a failed call is transient and the caller retries on
// its next cycle.
type Gateway interface {
	// History returns the manager's entries, newest first.
	History(ctx context.Context) ([]string, error)
	// Rewrite replaces the manager's history so it holds exactly entries,
	// newest first. Klipper has no per-entry delete: removing items means
	// rewriting the history without them, so removing an entry that is
	// already gone is a no-op by construction.
	Rewrite(ctx context.Context, entries []string) error
	// Selection reads the current clipboard contents, which Klipper tracks
	// separately from history.
	Selection(ctx context.Context) (string, error)
	SetSelection(ctx context.Context, content string) error
	// SubscribeUpdates delivers a signal whenever Klipper reports a history
	// change. Best effort: on error the caller falls back to polling.
	SubscribeUpdates(ctx context.Context) (<-chan struct{}, error)
}

// DBus implements Gateway against Klipper's session-bus API.
type DBus struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	timeout time.Duration
	logger  *zap.Logger
}

// Connect attaches to the session bus. Klipper itself is only contacted on
// the first call.
func Connect(logger *zap.Logger, timeout time.Duration) (*DBus, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to D-Bus session bus: %w", err)
	}

	return &DBus{
		conn:    conn,
		obj:     conn.Object(busName, objectPath),
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (g *DBus) Close() error {
	return g.conn.Close()
}

func (g *DBus) call(ctx context.Context, method string, out interface{}, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	call := g.obj.CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return call.Err
	}

	if out != nil {
		return call.Store(out)
	}

	return nil
}

func (g *DBus) History(ctx context.Context) ([]string, error) {
	var entries []string
	if err := g.call(ctx, methodHistory, &entries); err != nil {
		return nil, fmt.Errorf("fetching clipboard history: %w", err)
	}

	return entries, nil
}

// Rewrite clears the history and replays entries oldest-first, which leaves
// Klipper holding them newest-first with the newest as the active selection.
func (g *DBus) Rewrite(ctx context.Context, entries []string) error {
	g.logger.Debug("rewriting clipboard history", zap.Int("entries", len(entries)))

	if err := g.call(ctx, methodClear, nil); err != nil {
		return fmt.Errorf("clearing clipboard history: %w", err)
	}

	for i := len(entries) - 1; i >= 0; i-- {
		if err := g.call(ctx, methodSetContents, nil, entries[i]); err != nil {
			return fmt.Errorf("restoring clipboard entry: %w", err)
		}
	}

	return nil
}

func (g *DBus) Selection(ctx context.Context) (string, error) {
	var content string
	if err := g.call(ctx, methodGetContents, &content); err != nil {
		return "", fmt.Errorf("reading clipboard contents: %w", err)
	}

	return content, nil
}

func (g *DBus) SetSelection(ctx context.Context, content string) error {
	if err := g.call(ctx, methodSetContents, nil, content); err != nil {
		return fmt.Errorf("setting clipboard contents: %w", err)
	}

	return nil
}

// SubscribeUpdates forwards clipboardHistoryUpdated signals. Events are
// coalesced: at most one update is pending at a time, which is enough to
// trigger a resync.
func (g *DBus) SubscribeUpdates(ctx context.Context) (<-chan struct{}, error) {
	if err := g.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember(signalUpdated),
	); err != nil {
		return nil, fmt.Errorf("subscribing to %v signal: %w", signalUpdated, err)
	}

	g.logger.Debug("subscribed to clipboard updates")

	raw := make(chan *dbus.Signal, 16)
	g.conn.Signal(raw)

	updates := make(chan struct{}, 1)
	go func() {
		defer close(updates)

		for {
			select {
			case <-ctx.Done():
				g.conn.RemoveSignal(raw)
				return
			case sig, ok := <-raw:
				if !ok {
					return
				}
				if sig.Name != iface+"."+signalUpdated {
					continue
				}

				select {
				case updates <- struct{}{}:
				default:
				}
			}
		}
	}()

	return updates, nil
}
