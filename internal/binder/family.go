// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package binder

// family bundles the iptables binary and ip command prefix for one
// address family (IPv4 or IPv6).
type family struct {
	iptables string
	ipcmd    string
}

// families returns the address families this binder operates on: both
// IPv4 and IPv6 unless configured IPv4-only.
func (b *LinuxBinder) families() []family {
	fams := []family{{iptables: b.cfg.IPTables, ipcmd: b.cfg.IPCmd}}
	if !b.cfg.IPv4Only {
		fams = append(fams, family{iptables: b.cfg.IP6Tables, ipcmd: b.cfg.IPCmd + " -6"})
	}
	return fams
}

// familyFor returns the family to use for client, based on whether
// its address is IPv6.
func (b *LinuxBinder) familyFor(isIPv6 bool) family {
	if isIPv6 {
		return family{iptables: b.cfg.IP6Tables, ipcmd: b.cfg.IPCmd + " -6"}
	}
	return family{iptables: b.cfg.IPTables, ipcmd: b.cfg.IPCmd}
}
