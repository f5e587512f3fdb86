// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kitrouter

import (
	"sort"
	"sync"

	"kitero.dev/kitero/internal/kerrors"
	"kitero.dev/kitero/internal/netutil"
)

// Router holds the interface/QoS catalog and the authoritative
// client binding table, and fans bind/unbind events out to its
// registered observers. All mutating and snapshotting operations
// acquire the same mutex, matching the single "router_lock" discipline
// the RPC layer relies on.
type Router struct {
	mu sync.Mutex

	incoming   []string
	interfaces map[string]Interface
	clients    map[string]Binding

	observers []Binder
	stats     StatsProvider
}

// Load parses a Document into a Router with an empty client table.
// It fails with a KindConfiguration error if the incoming key is
// missing, an interface references an unregistered QoS id, or an
// incoming identifier collides with an outgoing one.
func Load(doc Document) (*Router, error) {
	if len(doc.Clients) == 0 {
		return nil, kerrors.New(kerrors.KindConfiguration, "kitrouter: router document is missing the clients key")
	}

	qosCatalog := make(map[string]QoS, len(doc.QoS))
	for id, q := range doc.QoS {
		settings := make(map[string]any)
		if q.Bandwidth != nil {
			settings["bandwidth"] = q.Bandwidth
		}
		if q.Netem != nil {
			settings["netem"] = q.Netem
		}
		qosCatalog[id] = QoS{Name: q.Name, Description: q.Description, Settings: settings}
	}

	interfaces := make(map[string]Interface, len(doc.Interfaces))
	for id, ifaceDoc := range doc.Interfaces {
		ifaceQoS := make(map[string]QoS, len(ifaceDoc.QoSRefs))
		for _, ref := range ifaceDoc.QoSRefs {
			q, ok := qosCatalog[ref]
			if !ok {
				return nil, kerrors.Attr(
					kerrors.Errorf(kerrors.KindConfiguration, "kitrouter: interface %q references unknown qos %q", id, ref),
					"interface", id)
			}
			ifaceQoS[ref] = q
		}
		interfaces[id] = Interface{Name: ifaceDoc.Name, Description: ifaceDoc.Description, QoS: ifaceQoS}
	}

	incoming := []string(doc.Clients)
	for _, in := range incoming {
		if _, ok := interfaces[in]; ok {
			return nil, kerrors.Errorf(kerrors.KindConfiguration, "kitrouter: incoming interface %q collides with an outgoing interface", in)
		}
	}

	return &Router{incoming: incoming, interfaces: interfaces, clients: make(map[string]Binding)}, nil
}

// Register appends observer to the observer list. If observer also
// implements StatsProvider, it becomes the designated stats provider
// (the last such registration wins).
func (r *Router) Register(observer Binder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observers = append(r.observers, observer)
	if sp, ok := observer.(StatsProvider); ok {
		r.stats = sp
	}
}

// Incoming returns the configured incoming (LAN-side) interface
// identifiers.
func (r *Router) Incoming() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.incomingLocked()
}

func (r *Router) incomingLocked() []string {
	out := make([]string, len(r.incoming))
	copy(out, r.incoming)
	return out
}

// Interfaces returns a snapshot of the outgoing interface catalog.
func (r *Router) Interfaces() map[string]Interface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interfacesLocked()
}

func (r *Router) interfacesLocked() map[string]Interface {
	out := make(map[string]Interface, len(r.interfaces))
	for id, iface := range r.interfaces {
		out[id] = iface
	}
	return out
}

// SortedInterfaceIDs returns the outgoing interface identifiers in
// lexicographic order, used by the binder to fix each interface's
// mark index for the router's lifetime.
func (r *Router) SortedInterfaceIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedInterfaceIDsLocked()
}

func (r *Router) sortedInterfaceIDsLocked() []string {
	ids := make([]string, 0, len(r.interfaces))
	for id := range r.interfaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Client returns the binding for a client, canonicalizing its
// address first. The second return value is false if the client is
// unbound or its address does not parse.
func (r *Router) Client(client string) (Binding, bool) {
	canonical, err := netutil.CanonicalizeClient(client)
	if err != nil {
		return Binding{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.clients[canonical]
	return b, ok
}

// clientBindingLocked looks up an already-canonicalized client address
// without taking the lock; it is only safe to call while r.mu is
// already held, which is how a RouterView exposes it to observers
// during Notify.
func (r *Router) clientBindingLocked(canonicalClient string) (Binding, bool) {
	b, ok := r.clients[canonicalClient]
	return b, ok
}

// routerView is the RouterView handed to observers during Notify. Its
// methods read fields already protected by the caller's held lock
// and must never acquire r.mu themselves.
type routerView struct {
	r *Router
}

func (v routerView) Interfaces() map[string]Interface  { return v.r.interfacesLocked() }
func (v routerView) Incoming() []string                { return v.r.incomingLocked() }
func (v routerView) SortedInterfaceIDs() []string      { return v.r.sortedInterfaceIDsLocked() }
func (v routerView) ClientBinding(client string) (Binding, bool) {
	return v.r.clientBindingLocked(client)
}

// Bind canonicalizes client, validates iface and qos against the
// catalog, notifies observers in registration order, and only then
// records the binding. An observer error aborts the bind; the client
// is left unbound.
func (r *Router) Bind(client, iface, qos string) error {
	canonical, err := netutil.CanonicalizeClient(client)
	if err != nil {
		return kerrors.Wrapf(err, kerrors.KindConfiguration, "kitrouter: cannot bind invalid client address %q", client)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[canonical]; exists {
		return kerrors.Errorf(kerrors.KindConflict, "kitrouter: client %q is already bound", canonical)
	}

	return r.bindLocked(canonical, iface, qos)
}

// Rebind atomically moves client onto a new (iface, qos) binding
// under a single lock hold: an existing binding is unbound before the
// new bind is attempted, matching the router_lock-guarded
// unbind-then-bind sequence bind_client performs. Unlike Bind, an
// existing binding is not a conflict. If the new bind is rejected,
// client is left unbound, same as two separate calls would leave it,
// but without a window in which a concurrent caller can observe (or
// act on) the intermediate unbound state.
func (r *Router) Rebind(client, iface, qos string) error {
	canonical, err := netutil.CanonicalizeClient(client)
	if err != nil {
		return kerrors.Wrapf(err, kerrors.KindConfiguration, "kitrouter: cannot bind invalid client address %q", client)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[canonical]; exists {
		if err := r.unbindLocked(canonical); err != nil {
			return err
		}
	}

	return r.bindLocked(canonical, iface, qos)
}

func (r *Router) bindLocked(canonical, iface, qos string) error {
	ifaceObj, ok := r.interfaces[iface]
	if !ok {
		return kerrors.Errorf(kerrors.KindLookup, "kitrouter: unknown interface %q", iface)
	}
	if _, ok := ifaceObj.QoS[qos]; !ok {
		return kerrors.Errorf(kerrors.KindLookup, "kitrouter: interface %q has no qos %q", iface, qos)
	}

	view := routerView{r}
	args := NotifyArgs{Client: canonical, Interface: iface, QoS: qos}
	for _, obs := range r.observers {
		if err := obs.Notify(view, EventBind, args); err != nil {
			return kerrors.Wrapf(err, kerrors.KindConflict, "kitrouter: observer rejected bind of %q", canonical)
		}
	}

	r.clients[canonical] = Binding{Interface: iface, QoS: qos}
	return nil
}

// Unbind is a no-op if client is unknown (or its address does not
// parse). Otherwise it notifies observers before removing the
// binding; an observer error leaves the client bound.
func (r *Router) Unbind(client string) error {
	canonical, err := netutil.CanonicalizeClient(client)
	if err != nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[canonical]; !ok {
		return nil
	}

	return r.unbindLocked(canonical)
}

func (r *Router) unbindLocked(canonical string) error {
	view := routerView{r}
	args := NotifyArgs{Client: canonical}
	for _, obs := range r.observers {
		if err := obs.Notify(view, EventUnbind, args); err != nil {
			return kerrors.Wrapf(err, kerrors.KindConflict, "kitrouter: observer rejected unbind of %q", canonical)
		}
	}

	delete(r.clients, canonical)
	return nil
}

// Stats consults the designated stats provider, then rebuilds the
// result from the authoritative client table: every outgoing
// interface appears, every bound client on it appears (even with no
// counters reported by the provider).
func (r *Router) Stats() (map[string]InterfaceStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var raw map[string]InterfaceStats
	if r.stats != nil {
		var err error
		raw, err = r.stats.Stats()
		if err != nil {
			return nil, err
		}
	}

	byIface := make(map[string][]string)
	for client, b := range r.clients {
		byIface[b.Interface] = append(byIface[b.Interface], client)
	}

	result := make(map[string]InterfaceStats, len(r.interfaces))
	for ifaceID := range r.interfaces {
		var base InterfaceStats
		if raw != nil {
			base = raw[ifaceID]
		}

		boundClients := byIface[ifaceID]
		details := make(map[string]ClientStats, len(boundClients))
		for _, client := range boundClients {
			if base.Details != nil {
				if cs, ok := base.Details[client]; ok {
					details[client] = cs
					continue
				}
			}
			details[client] = ClientStats{}
		}

		result[ifaceID] = InterfaceStats{
			Clients: len(boundClients),
			Up:      base.Up,
			Down:    base.Down,
			Details: details,
		}
	}

	return result, nil
}
