// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package binder implements the LinuxBinder: the router observer that
// translates a (client, interface, QoS) binding into policy routing,
// firewall marks, connection-mark propagation, and traffic-control
// queueing commands, and that parses per-client byte accounting back
// out of the kernel.
package binder

// Config parameterizes a LinuxBinder.
type Config struct {
	// MaxUsers bounds the per-interface slot space (U in the mark
	// allocator's bit layout).
	MaxUsers int

	// IPv4Only rejects IPv6 client addresses and skips all ip6tables/
	// "ip -6" operations, matching the IPv4-only binder variant.
	IPv4Only bool

	IPTables  string
	IP6Tables string
	IPCmd     string
	TC        string

	PreroutingChain  string
	PostroutingChain string
	AccountingChain  string
}

// DefaultConfig returns the standard chain names and binary paths.
func DefaultConfig() Config {
	return Config{
		MaxUsers:         256,
		IPTables:         "iptables",
		IP6Tables:        "ip6tables",
		IPCmd:            "ip",
		TC:               "tc",
		PreroutingChain:  "kitero-PREROUTING",
		PostroutingChain: "kitero-POSTROUTING",
		AccountingChain:  "kitero-ACCOUNTING",
	}
}
