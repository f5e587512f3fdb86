// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package alloc

import (
	"testing"

	"kitero.dev/kitero/internal/kerrors"
)

func TestTicketAllocator_LowestFreeStartsAtOne(t *testing.T) {
	a := NewTicketAllocator()

	t1, err := a.Request("10.0.0.1")
	if err != nil || t1 != 1 {
		t.Fatalf("expected ticket 1, got %d, err %v", t1, err)
	}
	t2, err := a.Request("10.0.0.2")
	if err != nil || t2 != 2 {
		t.Fatalf("expected ticket 2, got %d, err %v", t2, err)
	}
}

func TestTicketAllocator_ReusesGap(t *testing.T) {
	a := NewTicketAllocator()

	a.Request("c1")
	a.Request("c2")
	a.Request("c3")

	if err := a.Release("c2"); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}

	t4, err := a.Request("c4")
	if err != nil || t4 != 2 {
		t.Fatalf("expected reused ticket 2, got %d, err %v", t4, err)
	}
}

func TestTicketAllocator_GlobalNotPerInterface(t *testing.T) {
	a := NewTicketAllocator()

	t1, _ := a.Request("c1")
	t2, _ := a.Request("c2")
	if t1 == t2 {
		t.Error("expected distinct tickets across clients regardless of interface")
	}
}

func TestTicketAllocator_DuplicateRequestRejected(t *testing.T) {
	a := NewTicketAllocator()

	if _, err := a.Request("c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := a.Request("c1")
	if err == nil {
		t.Fatal("expected duplicate request to fail")
	}
	if kerrors.GetKind(err) != kerrors.KindConflict {
		t.Errorf("expected KindConflict, got %v", kerrors.GetKind(err))
	}
}

func TestTicketAllocator_ReleaseUnknownClientIsError(t *testing.T) {
	a := NewTicketAllocator()

	err := a.Release("c1")
	if err == nil {
		t.Fatal("expected release of unknown client to fail")
	}
	if kerrors.GetKind(err) != kerrors.KindLookup {
		t.Errorf("expected KindLookup, got %v", kerrors.GetKind(err))
	}
}

func TestTicketAllocator_Get(t *testing.T) {
	a := NewTicketAllocator()

	t1, err := a.Request("c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := a.Get("c1")
	if err != nil || got != t1 {
		t.Fatalf("expected Get to return %d, got %d, err %v", t1, got, err)
	}

	if _, err := a.Get("c9"); kerrors.GetKind(err) != kerrors.KindLookup {
		t.Errorf("expected KindLookup for unknown client, got %v", kerrors.GetKind(err))
	}
}

func TestTicketAllocator_KindExhaustionType(t *testing.T) {
	// Sanity check on the error kind without actually exhausting 429M tickets.
	err := kerrors.New(kerrors.KindExhaustion, "alloc: ticket space exhausted")
	if kerrors.GetKind(err) != kerrors.KindExhaustion {
		t.Errorf("expected KindExhaustion, got %v", kerrors.GetKind(err))
	}
}
