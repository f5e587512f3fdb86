// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package binder

import (
	"kitero.dev/kitero/internal/kerrors"
	"kitero.dev/kitero/internal/kitrouter"
	"kitero.dev/kitero/internal/netmon"
)

// LinuxBinder is a no-op stand-in on non-Linux platforms: it refuses
// every bind and reports empty statistics, since there is no ip/tc/
// iptables toolchain to shell out to.
type LinuxBinder struct {
	cfg Config
}

// NewLinuxBinder returns the non-Linux stub binder. netcheck is
// accepted for interface parity with the Linux constructor and
// ignored.
func NewLinuxBinder(cfg Config, netcheck netmon.Checker) *LinuxBinder {
	return &LinuxBinder{cfg: cfg}
}

// Notify always fails: this platform cannot program kernel network
// state.
func (b *LinuxBinder) Notify(view kitrouter.RouterView, event string, args kitrouter.NotifyArgs) error {
	return kerrors.New(kerrors.KindConfiguration, "binder: LinuxBinder is unavailable on this platform")
}

// Stats reports no statistics on this platform.
func (b *LinuxBinder) Stats() (map[string]kitrouter.InterfaceStats, error) {
	return map[string]kitrouter.InterfaceStats{}, nil
}
