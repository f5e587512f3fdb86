// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package kitrouter holds the router model: the QoS and interface
// catalog, the authoritative client binding table, and the observer
// fan-out that lets a binder react to bind/unbind events under a
// single lock.
package kitrouter

import "reflect"

// QoS is an immutable named bandwidth/netem profile. Settings holds
// the recognized option names ("bandwidth", "netem") mapped to either
// a scalar string or a map[string]any{"up": ..., "down": ...}.
type QoS struct {
	Name        string
	Description string
	Settings    map[string]any
}

// Equal reports structural equality over all three fields.
func (q QoS) Equal(o QoS) bool {
	return q.Name == o.Name &&
		q.Description == o.Description &&
		reflect.DeepEqual(q.Settings, o.Settings)
}

// Interface is an immutable outgoing (WAN-side) interface and the
// fixed set of QoS profiles clients may choose on it.
type Interface struct {
	Name        string
	Description string
	QoS         map[string]QoS
}

// Equal reports structural equality over name, description, and the
// full QoS catalog.
func (i Interface) Equal(o Interface) bool {
	if i.Name != o.Name || i.Description != o.Description {
		return false
	}
	if len(i.QoS) != len(o.QoS) {
		return false
	}
	for id, q := range i.QoS {
		oq, ok := o.QoS[id]
		if !ok || !q.Equal(oq) {
			return false
		}
	}
	return true
}

// Binding associates a canonicalized client address with the
// outgoing interface and QoS profile it is bound to.
type Binding struct {
	Interface string
	QoS       string
}

// Direction identifies a traffic direction relative to the client.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ClientStats holds per-direction byte counters for one client on one
// interface. A nil field means that direction was never observed in
// the accounting chain.
type ClientStats struct {
	Up   *int64
	Down *int64
}

// InterfaceStats aggregates accounting data for one outgoing
// interface: every bound client appears, even with zero/absent
// counters, because the router rebuilds this from its authoritative
// client table rather than trusting the binder's view alone.
type InterfaceStats struct {
	Clients int
	Up      int64
	Down    int64
	Details map[string]ClientStats
}
