// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package alloc assigns the small integer identifiers the binder
// needs per client: a per-interface slot index (used in the fwmark)
// and a global ticket number (used as the tc class id). Both use a
// lowest-free-index allocation scheme so that released identifiers are
// reused before the id space grows.
package alloc

import (
	"sort"
	"sync"

	"kitero.dev/kitero/internal/kerrors"
)

// SlotAllocator assigns each client the lowest unused slot index
// within its interface. Slots are scoped per interface: the same
// numeric slot can be in use simultaneously on two different
// interfaces.
type SlotAllocator struct {
	mu       sync.Mutex
	maxSlots int
	byIface  map[string]map[string]int // interface -> client -> slot
}

// NewSlotAllocator returns a SlotAllocator that will refuse to hand
// out a slot index >= maxSlots.
func NewSlotAllocator(maxSlots int) *SlotAllocator {
	return &SlotAllocator{
		maxSlots: maxSlots,
		byIface:  make(map[string]map[string]int),
	}
}

// Request allocates the lowest free slot index for client on
// interface, reusing any gap left by a released client. It returns a
// KindConflict error if client already holds a slot on interface (use
// Get to look up an existing assignment) and a KindExhaustion error
// if every slot below maxSlots is taken.
func (s *SlotAllocator) Request(iface, client string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.byIface[iface]
	if clients == nil {
		clients = make(map[string]int)
		s.byIface[iface] = clients
	}

	if _, ok := clients[client]; ok {
		return 0, kerrors.Attr(
			kerrors.Errorf(kerrors.KindConflict, "alloc: client %q already holds a slot on interface %q", client, iface),
			"interface", iface)
	}

	used := make([]int, 0, len(clients))
	for _, slot := range clients {
		used = append(used, slot)
	}
	sort.Ints(used)

	next := 0
	for i, slot := range used {
		if slot != i {
			break
		}
		next = i + 1
	}

	if next >= s.maxSlots {
		return 0, kerrors.Attr(
			kerrors.Errorf(kerrors.KindExhaustion, "alloc: no free slot on interface %q (max %d)", iface, s.maxSlots),
			"interface", iface)
	}

	clients[client] = next
	return next, nil
}

// Get returns the slot already held by client on interface, without
// allocating one. It returns a KindLookup error if client holds no
// slot there.
func (s *SlotAllocator) Get(iface, client string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot, ok := s.byIface[iface][client]; ok {
		return slot, nil
	}
	return 0, kerrors.Attr(
		kerrors.Errorf(kerrors.KindLookup, "alloc: client %q holds no slot on interface %q", client, iface),
		"interface", iface)
}

// Release frees the slot held by client, searching every interface.
// It returns a KindLookup error if the client holds no slot anywhere.
func (s *SlotAllocator) Release(client string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.byIface {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			return nil
		}
	}
	return kerrors.Errorf(kerrors.KindLookup, "alloc: client %q holds no slot", client)
}
