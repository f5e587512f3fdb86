// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package binder

import (
	"fmt"
	"sync"

	"kitero.dev/kitero/internal/alloc"
	"kitero.dev/kitero/internal/cmdrunner"
	"kitero.dev/kitero/internal/kerrors"
	"kitero.dev/kitero/internal/kitrouter"
	"kitero.dev/kitero/internal/logging"
	"kitero.dev/kitero/internal/mark"
	"kitero.dev/kitero/internal/netmon"
	"kitero.dev/kitero/internal/netutil"
)

// commandRunner is the subset of *cmdrunner.Runner the binder needs;
// narrowing to an interface lets tests substitute a fake that records
// emitted commands instead of shelling out.
type commandRunner interface {
	Run(templates []string, values map[string]string, strict bool) ([]string, error)
}

// LinuxBinder is the router observer that programs policy routing,
// firewall marks, connection-mark propagation and traffic-control
// queueing via shelled-out ip/tc/iptables/ip6tables commands. It
// observes exactly one router for its lifetime.
type LinuxBinder struct {
	cfg      Config
	runner   commandRunner
	netcheck netmon.Checker
	log      *logging.Logger

	mu             sync.Mutex
	view           kitrouter.RouterView
	interfaceIndex map[string]int
	mark           *mark.Mark
	slots          *alloc.SlotAllocator
	tickets        *alloc.TicketAllocator
}

// NewLinuxBinder returns a LinuxBinder. netcheck may be nil to skip
// the interface-existence pre-check.
func NewLinuxBinder(cfg Config, netcheck netmon.Checker) *LinuxBinder {
	return &LinuxBinder{
		cfg:      cfg,
		runner:   cmdrunner.New(),
		netcheck: netcheck,
		log:      logging.New(logging.DefaultConfig()).WithComponent("binder"),
	}
}

// Notify implements kitrouter.Binder. The first call runs setup
// against view's router; later calls must come from the same router.
func (b *LinuxBinder) Notify(view kitrouter.RouterView, event string, args kitrouter.NotifyArgs) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.view == nil {
		if err := b.setup(view); err != nil {
			return err
		}
		b.view = view
	} else if b.view != view {
		return kerrors.New(kerrors.KindConflict, "binder: already observing a different router")
	}

	switch event {
	case kitrouter.EventBind:
		return b.handleBind(view, args)
	case kitrouter.EventUnbind:
		return b.handleUnbind(view, args)
	default:
		return kerrors.Errorf(kerrors.KindProtocol, "binder: unknown event %q", event)
	}
}

func (b *LinuxBinder) setup(view kitrouter.RouterView) error {
	ids := view.SortedInterfaceIDs()
	incoming := view.Incoming()

	b.interfaceIndex = make(map[string]int, len(ids))
	for i, id := range ids {
		b.interfaceIndex[id] = i
	}

	m, err := mark.New(len(ids), b.cfg.MaxUsers)
	if err != nil {
		return err
	}
	b.mark = m
	b.slots = alloc.NewSlotAllocator(b.cfg.MaxUsers)
	b.tickets = alloc.NewTicketAllocator()

	allIfaces := append(append([]string{}, ids...), incoming...)

	if b.netcheck != nil {
		for _, iface := range allIfaces {
			ok, err := b.netcheck.InterfaceExists(iface)
			if err != nil {
				return kerrors.Wrapf(err, kerrors.KindConfiguration, "binder: checking interface %q", iface)
			}
			if !ok {
				return kerrors.Errorf(kerrors.KindConfiguration, "binder: configured interface %q does not exist", iface)
			}
		}
	}

	families := b.families()

	type chainHook struct{ chain, hook string }
	chains := []chainHook{
		{b.cfg.PreroutingChain, "PREROUTING"},
		{b.cfg.AccountingChain, "POSTROUTING"},
		{b.cfg.PostroutingChain, "POSTROUTING"},
	}
	for _, ch := range chains {
		for _, fam := range families {
			cleanup := []string{
				fmt.Sprintf("%s -t mangle -D %s -j %s", fam.iptables, ch.hook, ch.chain),
				fmt.Sprintf("%s -t mangle -F %s", fam.iptables, ch.chain),
				fmt.Sprintf("%s -t mangle -X %s", fam.iptables, ch.chain),
			}
			if _, err := b.runner.Run(cleanup, nil, false); err != nil {
				return err
			}

			create := []string{
				fmt.Sprintf("%s -t mangle -N %s", fam.iptables, ch.chain),
				fmt.Sprintf("%s -t mangle -I %s -j %s", fam.iptables, ch.hook, ch.chain),
			}
			if _, err := b.runner.Run(create, nil, true); err != nil {
				return err
			}
		}
	}

	for _, iface := range allIfaces {
		if _, err := b.runner.Run([]string{fmt.Sprintf("%s qdisc del dev %s root", b.cfg.TC, iface)}, nil, false); err != nil {
			return err
		}

		create := []string{
			fmt.Sprintf("%s qdisc add dev %s root handle 1: drr", b.cfg.TC, iface),
			fmt.Sprintf("%s class add dev %s parent 1: classid 1:2 drr", b.cfg.TC, iface),
			fmt.Sprintf("%s qdisc add dev %s parent 1:2 handle 12: sfq", b.cfg.TC, iface),
			fmt.Sprintf("%s filter add dev %s protocol arp parent 1:0 prio 1 u32 match u32 0 0 flowid 1:2", b.cfg.TC, iface),
		}
		if _, err := b.runner.Run(create, nil, true); err != nil {
			return err
		}

		for _, fam := range families {
			classify := fmt.Sprintf("%s -t mangle -A %s -o %s -j CLASSIFY --set-class 1:2", fam.iptables, b.cfg.PostroutingChain, iface)
			if _, err := b.runner.Run([]string{classify}, nil, true); err != nil {
				return err
			}
		}
	}

	for _, id := range ids {
		idx := b.interfaceIndex[id]
		markHex, maskHex := b.mark.At(idx, -1)
		for _, fam := range families {
			del := fmt.Sprintf("%s rule del fwmark %s/%s table %s", fam.ipcmd, markHex, maskHex, id)
			if _, err := b.runner.Run([]string{del}, nil, false); err != nil {
				return err
			}

			add := fmt.Sprintf("%s rule add fwmark %s/%s table %s", fam.ipcmd, markHex, maskHex, id)
			if _, err := b.runner.Run([]string{add}, nil, true); err != nil {
				return err
			}
		}
	}

	b.log.Info("setup complete", "interfaces", len(ids), "incoming", len(incoming))
	return nil
}

func (b *LinuxBinder) handleBind(view kitrouter.RouterView, args kitrouter.NotifyArgs) error {
	client, iface, qosID := args.Client, args.Interface, args.QoS

	if b.cfg.IPv4Only && netutil.IsIPv6(client) {
		return kerrors.Errorf(kerrors.KindConfiguration, "binder: this binder is IPv4-only, cannot bind IPv6 client %q", client)
	}

	slot, err := b.slots.Request(iface, client)
	if err != nil {
		return err
	}

	ticket, err := b.tickets.Request(client)
	if err != nil {
		_ = b.slots.Release(client)
		return err
	}

	qosObj := view.Interfaces()[iface].QoS[qosID]

	if err := b.apply(view, client, iface, qosObj, slot, ticket, true); err != nil {
		_ = b.slots.Release(client)
		_ = b.tickets.Release(client)
		return err
	}

	b.log.Info("bound client", "client", client, "interface", iface, "qos", qosID, "ticket", ticket, "slot", slot)
	return nil
}

func (b *LinuxBinder) handleUnbind(view kitrouter.RouterView, args kitrouter.NotifyArgs) error {
	client := args.Client

	binding, ok := view.ClientBinding(client)
	if !ok {
		return nil
	}

	qosObj := view.Interfaces()[binding.Interface].QoS[binding.QoS]

	slot, err := b.slots.Get(binding.Interface, client)
	if err != nil {
		return err
	}
	ticket, err := b.tickets.Get(client)
	if err != nil {
		return err
	}

	if err := b.apply(view, client, binding.Interface, qosObj, slot, ticket, false); err != nil {
		return err
	}

	if err := b.slots.Release(client); err != nil {
		return err
	}
	if err := b.tickets.Release(client); err != nil {
		return err
	}

	b.log.Info("unbound client", "client", client, "interface", binding.Interface)
	return nil
}

// apply emits (bind=true) or removes (bind=false) the tc and iptables
// rules for one client on one interface, across the outgoing
// interface and every incoming interface.
func (b *LinuxBinder) apply(view kitrouter.RouterView, client, iface string, qos kitrouter.QoS, slot, ticket int, bind bool) error {
	incoming := view.Incoming()
	idx := b.interfaceIndex[iface]
	markHex, maskHex := b.mark.At(idx, slot)

	classID := fmt.Sprintf("1:%d0", ticket)
	tbfHandle := fmt.Sprintf("%d0:", ticket)
	netemHandle := fmt.Sprintf("%d1:", ticket)

	bw := directional(qos.Settings["bandwidth"])
	netem := directional(qos.Settings["netem"])

	tcVerb := "add"
	if !bind {
		tcVerb = "del"
	}

	type ifaceDir struct {
		iface     string
		direction string
	}
	targets := []ifaceDir{{iface, "up"}}
	for _, in := range incoming {
		targets = append(targets, ifaceDir{in, "down"})
	}

	var tcCmds []string
	for _, t := range targets {
		tcCmds = append(tcCmds, fmt.Sprintf("%s class %s dev %s parent 1: classid %s drr", b.cfg.TC, tcVerb, t.iface, classID))

		if !bind {
			continue
		}

		bwVal, hasBW := bw[t.direction]
		neVal, hasNE := netem[t.direction]

		switch {
		case hasBW:
			tcCmds = append(tcCmds, fmt.Sprintf("%s qdisc add dev %s parent %s handle %s tbf rate %s", b.cfg.TC, t.iface, classID, tbfHandle, bwVal))
			if hasNE {
				tcCmds = append(tcCmds, fmt.Sprintf("%s qdisc add dev %s parent %s1 handle %s netem %s", b.cfg.TC, t.iface, tbfHandle, netemHandle, neVal))
			}
		case hasNE:
			tcCmds = append(tcCmds, fmt.Sprintf("%s qdisc add dev %s parent %s handle %s netem %s", b.cfg.TC, t.iface, classID, tbfHandle, neVal))
		default:
			tcCmds = append(tcCmds, fmt.Sprintf("%s qdisc add dev %s parent %s handle %s sfq", b.cfg.TC, t.iface, classID, tbfHandle))
		}
	}

	if _, err := b.runner.Run(tcCmds, nil, true); err != nil {
		return err
	}

	fam := b.familyFor(netutil.IsIPv6(client))
	verb := "-A"
	if !bind {
		verb = "-D"
	}

	var fwCmds []string
	for _, in := range incoming {
		fwCmds = append(fwCmds, fmt.Sprintf("%s -t mangle %s %s -i %s -s %s -j MARK --set-mark %s/%s",
			fam.iptables, verb, b.cfg.PreroutingChain, in, client, markHex, maskHex))
	}

	fwCmds = append(fwCmds, fmt.Sprintf("%s -t mangle %s %s -o %s -s %s -m mark --mark %s/%s -j CONNMARK --save-mark --nfmask %s --ctmask %s",
		fam.iptables, verb, b.cfg.PostroutingChain, iface, client, markHex, maskHex, maskHex, maskHex))

	fwCmds = append(fwCmds, fmt.Sprintf("%s -t mangle %s %s -o %s -m connmark --mark %s/%s -j CLASSIFY --set-class %s",
		fam.iptables, verb, b.cfg.PostroutingChain, iface, markHex, maskHex, classID))
	for _, in := range incoming {
		fwCmds = append(fwCmds, fmt.Sprintf("%s -t mangle %s %s -o %s -m connmark --mark %s/%s -j CLASSIFY --set-class %s",
			fam.iptables, verb, b.cfg.PostroutingChain, in, markHex, maskHex, classID))
	}

	fwCmds = append(fwCmds, fmt.Sprintf("%s -t mangle %s %s -o %s -m connmark --mark %s/%s -m comment --comment up-%s-%s",
		fam.iptables, verb, b.cfg.AccountingChain, iface, markHex, maskHex, iface, client))
	for _, in := range incoming {
		fwCmds = append(fwCmds, fmt.Sprintf("%s -t mangle %s %s -o %s -m connmark --mark %s/%s -m comment --comment down-%s-%s",
			fam.iptables, verb, b.cfg.AccountingChain, in, markHex, maskHex, iface, client))
	}

	_, err := b.runner.Run(fwCmds, nil, true)
	return err
}
