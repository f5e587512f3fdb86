// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kitrouter

import (
	"testing"

	"kitero.dev/kitero/internal/kerrors"
)

func sampleDocument() Document {
	return Document{
		Clients: StringList{"eth0"},
		QoS: map[string]QoSDocument{
			"qos1": {Name: "Basic", Description: "basic tier", Bandwidth: "10mbps"},
			"qos2": {Name: "Gold", Description: "gold tier", Bandwidth: "100mbps", Netem: "delay 10ms"},
		},
		Interfaces: map[string]InterfaceDocument{
			"eth1": {Name: "WAN 1", Description: "primary uplink", QoSRefs: []string{"qos1", "qos2"}},
			"eth2": {Name: "WAN 2", Description: "secondary uplink", QoSRefs: []string{"qos1"}},
		},
	}
}

func TestLoad_MissingClients(t *testing.T) {
	_, err := Load(Document{Interfaces: map[string]InterfaceDocument{}})
	if err == nil {
		t.Fatal("expected error for missing clients key")
	}
	if kerrors.GetKind(err) != kerrors.KindConfiguration {
		t.Errorf("expected KindConfiguration, got %v", kerrors.GetKind(err))
	}
}

func TestLoad_UnknownQoSReference(t *testing.T) {
	doc := sampleDocument()
	doc.Interfaces["eth1"] = InterfaceDocument{Name: "WAN 1", QoSRefs: []string{"nonexistent"}}

	_, err := Load(doc)
	if err == nil {
		t.Fatal("expected error for unknown qos reference")
	}
	if kerrors.GetKind(err) != kerrors.KindConfiguration {
		t.Errorf("expected KindConfiguration, got %v", kerrors.GetKind(err))
	}
}

func TestLoad_IncomingCollidesWithOutgoing(t *testing.T) {
	doc := sampleDocument()
	doc.Clients = StringList{"eth1"}

	_, err := Load(doc)
	if err == nil {
		t.Fatal("expected error for incoming/outgoing collision")
	}
}

func TestLoad_Success(t *testing.T) {
	r, err := Load(sampleDocument())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Interfaces()) != 2 {
		t.Errorf("expected 2 interfaces, got %d", len(r.Interfaces()))
	}
	if len(r.Incoming()) != 1 || r.Incoming()[0] != "eth0" {
		t.Errorf("expected incoming [eth0], got %v", r.Incoming())
	}
}

type fakeBinder struct {
	events []NotifyArgs
	fail   bool
}

func (f *fakeBinder) Notify(view RouterView, event string, args NotifyArgs) error {
	if f.fail {
		return kerrors.New(kerrors.KindConflict, "fake failure")
	}
	f.events = append(f.events, args)
	return nil
}

func TestBind_NotifiesBeforeMutating(t *testing.T) {
	r, err := Load(sampleDocument())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := &fakeBinder{}
	r.Register(b)

	if err := r.Bind("192.168.1.5", "eth1", "qos1"); err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}

	if len(b.events) != 1 {
		t.Fatalf("expected 1 notify event, got %d", len(b.events))
	}
	if b.events[0].Client != "192.168.1.5" || b.events[0].Interface != "eth1" || b.events[0].QoS != "qos1" {
		t.Errorf("unexpected notify args: %+v", b.events[0])
	}

	binding, ok := r.Client("192.168.1.5")
	if !ok || binding.Interface != "eth1" || binding.QoS != "qos1" {
		t.Errorf("expected client bound to eth1/qos1, got %+v, ok=%v", binding, ok)
	}
}

func TestBind_ObserverFailureLeavesClientUnbound(t *testing.T) {
	r, err := Load(sampleDocument())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.Register(&fakeBinder{fail: true})

	if err := r.Bind("192.168.1.5", "eth1", "qos1"); err == nil {
		t.Fatal("expected bind to fail")
	}

	if _, ok := r.Client("192.168.1.5"); ok {
		t.Error("expected client to remain unbound after observer failure")
	}
}

func TestBind_DuplicateRejected(t *testing.T) {
	r, _ := Load(sampleDocument())
	if err := r.Bind("192.168.1.5", "eth1", "qos1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := r.Bind("192.168.1.5", "eth1", "qos1")
	if err == nil {
		t.Fatal("expected duplicate bind to fail")
	}
	if kerrors.GetKind(err) != kerrors.KindConflict {
		t.Errorf("expected KindConflict, got %v", kerrors.GetKind(err))
	}
}

func TestBind_UnknownInterfaceAndQoS(t *testing.T) {
	r, _ := Load(sampleDocument())

	if err := r.Bind("192.168.1.5", "eth9", "qos1"); kerrors.GetKind(err) != kerrors.KindLookup {
		t.Errorf("expected KindLookup for unknown interface, got %v", kerrors.GetKind(err))
	}
	if err := r.Bind("192.168.1.5", "eth1", "qos9"); kerrors.GetKind(err) != kerrors.KindLookup {
		t.Errorf("expected KindLookup for unknown qos, got %v", kerrors.GetKind(err))
	}
}

func TestRebind_MovesExistingBindingAtomically(t *testing.T) {
	r, _ := Load(sampleDocument())
	b := &fakeBinder{}
	r.Register(b)

	if err := r.Bind("192.168.1.5", "eth1", "qos1"); err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}
	b.events = nil

	if err := r.Rebind("192.168.1.5", "eth2", "qos1"); err != nil {
		t.Fatalf("unexpected rebind error: %v", err)
	}

	if len(b.events) != 2 {
		t.Fatalf("expected an unbind notify followed by a bind notify, got %d events", len(b.events))
	}
	if b.events[0].Interface != "" || b.events[0].QoS != "" {
		t.Errorf("expected first notify to be the unbind (empty iface/qos), got %+v", b.events[0])
	}
	if b.events[1].Interface != "eth2" || b.events[1].QoS != "qos1" {
		t.Errorf("expected second notify to bind eth2/qos1, got %+v", b.events[1])
	}

	binding, ok := r.Client("192.168.1.5")
	if !ok || binding.Interface != "eth2" || binding.QoS != "qos1" {
		t.Errorf("expected client rebound to eth2/qos1, got %+v, ok=%v", binding, ok)
	}
}

func TestRebind_NoExistingBindingIsPlainBind(t *testing.T) {
	r, _ := Load(sampleDocument())
	b := &fakeBinder{}
	r.Register(b)

	if err := r.Rebind("192.168.1.5", "eth1", "qos1"); err != nil {
		t.Fatalf("unexpected rebind error: %v", err)
	}
	if len(b.events) != 1 {
		t.Fatalf("expected a single bind notify, got %d", len(b.events))
	}

	binding, ok := r.Client("192.168.1.5")
	if !ok || binding.Interface != "eth1" || binding.QoS != "qos1" {
		t.Errorf("expected client bound to eth1/qos1, got %+v, ok=%v", binding, ok)
	}
}

func TestRebind_RejectedNewBindLeavesClientUnbound(t *testing.T) {
	r, _ := Load(sampleDocument())
	r.Bind("192.168.1.5", "eth1", "qos1")

	err := r.Rebind("192.168.1.5", "eth9", "qos1")
	if kerrors.GetKind(err) != kerrors.KindLookup {
		t.Errorf("expected KindLookup for unknown interface, got %v", kerrors.GetKind(err))
	}
	if _, ok := r.Client("192.168.1.5"); ok {
		t.Error("expected client left unbound after rebind's new bind is rejected")
	}
}

func TestUnbind_NoopWhenUnknown(t *testing.T) {
	r, _ := Load(sampleDocument())
	if err := r.Unbind("192.168.1.5"); err != nil {
		t.Errorf("expected no-op, got error: %v", err)
	}
}

func TestUnbind_NotifiesThenRemoves(t *testing.T) {
	r, _ := Load(sampleDocument())
	b := &fakeBinder{}
	r.Register(b)

	r.Bind("192.168.1.5", "eth1", "qos1")
	b.events = nil

	if err := r.Unbind("192.168.1.5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.events) != 1 {
		t.Fatalf("expected 1 unbind notify, got %d", len(b.events))
	}
	if _, ok := r.Client("192.168.1.5"); ok {
		t.Error("expected client removed after unbind")
	}
}

func TestUnbind_ObserverFailureLeavesClientBound(t *testing.T) {
	r, _ := Load(sampleDocument())
	b := &fakeBinder{}
	r.Register(b)
	r.Bind("192.168.1.5", "eth1", "qos1")

	b.fail = true
	if err := r.Unbind("192.168.1.5"); err == nil {
		t.Fatal("expected unbind to fail")
	}

	if _, ok := r.Client("192.168.1.5"); !ok {
		t.Error("expected client to remain bound after observer failure")
	}
}

type fakeStatsProvider struct {
	fakeBinder
	stats map[string]InterfaceStats
}

func (f *fakeStatsProvider) Stats() (map[string]InterfaceStats, error) {
	return f.stats, nil
}

func TestStats_RebuildsFromAuthoritativeTable(t *testing.T) {
	r, _ := Load(sampleDocument())

	up := int64(1000)
	provider := &fakeStatsProvider{
		stats: map[string]InterfaceStats{
			"eth1": {
				Up:   5000,
				Down: 2000,
				Details: map[string]ClientStats{
					"192.168.1.5": {Up: &up},
				},
			},
		},
	}
	r.Register(provider)

	r.Bind("192.168.1.5", "eth1", "qos1")
	r.Bind("192.168.1.6", "eth1", "qos1")

	stats, err := r.Stats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eth1 := stats["eth1"]
	if eth1.Clients != 2 {
		t.Errorf("expected 2 clients on eth1, got %d", eth1.Clients)
	}
	if len(eth1.Details) != 2 {
		t.Errorf("expected 2 client detail entries, got %d", len(eth1.Details))
	}
	if eth1.Details["192.168.1.5"].Up == nil || *eth1.Details["192.168.1.5"].Up != 1000 {
		t.Errorf("expected reported up bytes preserved for 192.168.1.5")
	}
	if eth1.Details["192.168.1.6"].Up != nil {
		t.Errorf("expected no up bytes reported for a client absent from the provider's view")
	}

	eth2 := stats["eth2"]
	if eth2.Clients != 0 {
		t.Errorf("expected eth2 to have no bound clients, got %d", eth2.Clients)
	}
}

func TestRegister_LastStatsProviderWins(t *testing.T) {
	r, _ := Load(sampleDocument())

	first := &fakeStatsProvider{stats: map[string]InterfaceStats{}}
	second := &fakeStatsProvider{stats: map[string]InterfaceStats{"eth1": {Up: 42}}}

	r.Register(first)
	r.Register(second)

	stats, err := r.Stats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats["eth1"].Up != 42 {
		t.Errorf("expected last-registered stats provider to win, got up=%d", stats["eth1"].Up)
	}
}

func TestSortedInterfaceIDs(t *testing.T) {
	r, _ := Load(sampleDocument())
	ids := r.SortedInterfaceIDs()
	if len(ids) != 2 || ids[0] != "eth1" || ids[1] != "eth2" {
		t.Errorf("expected sorted [eth1 eth2], got %v", ids)
	}
}
