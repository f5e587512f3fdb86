// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package alloc

import (
	"sort"
	"sync"

	"kitero.dev/kitero/internal/kerrors"
)

// maxTicket bounds the ticket space. Tickets are multiplied by 10 to
// form a tc class id (classid 1:TICKET0); staying at or below this
// bound keeps that multiplication inside a 32-bit class id.
const maxTicket = 429496729

// TicketAllocator assigns each client a globally unique, 1-based
// ticket number used to derive its tc class id. Unlike slots, tickets
// are not scoped per interface.
type TicketAllocator struct {
	mu       sync.Mutex
	byClient map[string]int
}

// NewTicketAllocator returns an empty TicketAllocator.
func NewTicketAllocator() *TicketAllocator {
	return &TicketAllocator{byClient: make(map[string]int)}
}

// Request allocates the lowest free ticket (starting at 1) for
// client, reusing any gap left by a released client. It returns a
// KindConflict error if client already holds a ticket (use Get to
// look up an existing assignment) and a KindExhaustion error if the
// ticket space is exhausted.
func (t *TicketAllocator) Request(client string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byClient[client]; ok {
		return 0, kerrors.Errorf(kerrors.KindConflict, "alloc: client %q already holds a ticket", client)
	}

	used := make([]int, 0, len(t.byClient))
	for _, ticket := range t.byClient {
		used = append(used, ticket)
	}
	sort.Ints(used)

	next := 1
	for i, ticket := range used {
		if ticket != i+1 {
			break
		}
		next = i + 2
	}

	if next > maxTicket {
		return 0, kerrors.New(kerrors.KindExhaustion, "alloc: ticket space exhausted")
	}

	t.byClient[client] = next
	return next, nil
}

// Get returns the ticket already held by client, without allocating
// one. It returns a KindLookup error if client holds no ticket.
func (t *TicketAllocator) Get(client string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ticket, ok := t.byClient[client]; ok {
		return ticket, nil
	}
	return 0, kerrors.Errorf(kerrors.KindLookup, "alloc: client %q holds no ticket", client)
}

// Release frees the ticket held by client. It returns a KindLookup
// error if the client holds no ticket.
func (t *TicketAllocator) Release(client string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byClient[client]; !ok {
		return kerrors.Errorf(kerrors.KindLookup, "alloc: client %q holds no ticket", client)
	}
	delete(t.byClient, client)
	return nil
}
