// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package netmon

import (
	"strings"

	"github.com/vishvananda/netlink"
)

// LinkChecker resolves interfaces via netlink, a pre-flight check
// before programming qdiscs against them.
type LinkChecker struct{}

// NewLinkChecker returns a Checker backed by netlink.LinkByName.
func NewLinkChecker() *LinkChecker { return &LinkChecker{} }

// InterfaceExists reports whether name resolves to a link on the host.
func (c *LinkChecker) InterfaceExists(name string) (bool, error) {
	_, err := netlink.LinkByName(name)
	if err == nil {
		return true, nil
	}
	if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "no such") {
		return false, nil
	}
	return false, err
}
