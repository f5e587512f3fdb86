// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netutil holds small address-handling helpers shared by the
// router and binder.
package netutil

import (
	"net/netip"

	"kitero.dev/kitero/internal/kerrors"
)

// CanonicalizeClient parses client as an IPv4 or IPv6 address and
// returns its canonical string form, so that equivalent textual
// representations of the same address (e.g. leading zeros within IPv6
// groups, mixed case, uncompressed IPv6) always key the router's
// client table identically. An IPv4 address with a leading-zero octet
// is rejected, and an IPv6 zone is kept as part of the key.
func CanonicalizeClient(client string) (string, error) {
	addr, err := netip.ParseAddr(client)
	if err != nil {
		return "", kerrors.Wrapf(err, kerrors.KindConfiguration, "netutil: invalid client address %q", client)
	}
	return addr.String(), nil
}

// IsIPv6 reports whether client is an IPv6 address. It only looks for
// a colon, which is cheaper than a full address parse on the hot
// bind/unbind path where the binder uses it.
func IsIPv6(client string) bool {
	for i := 0; i < len(client); i++ {
		if client[i] == ':' {
			return true
		}
	}
	return false
}
