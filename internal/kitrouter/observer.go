// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kitrouter

// Event names passed to Binder.Notify.
const (
	EventBind   = "bind"
	EventUnbind = "unbind"
)

// NotifyArgs carries the arguments of a bind/unbind event. QoS is
// empty for an unbind event.
type NotifyArgs struct {
	Client    string
	Interface string
	QoS       string
}

// RouterView exposes read-only router state to an observer during a
// Notify call, backed by data already protected by the router lock at
// that point. Observers must use only this view and must never call
// back into the Router itself (no reentrant locking).
type RouterView interface {
	Interfaces() map[string]Interface
	Incoming() []string
	SortedInterfaceIDs() []string
	ClientBinding(canonicalClient string) (Binding, bool)
}

// Binder is the capability a router observer must offer to register.
// Notify is called with the router lock held; implementations must
// not call back into the router (no reentrant locking) and should
// treat errors as fatal to the in-flight bind/unbind.
type Binder interface {
	Notify(view RouterView, event string, args NotifyArgs) error
}

// StatsProvider is an optional capability an observer may additionally
// offer. If the last-registered observer offering it is recorded as
// the router's designated stats provider.
type StatsProvider interface {
	Stats() (map[string]InterfaceStats, error)
}
