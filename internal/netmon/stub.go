// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package netmon

// LinkChecker is a no-op stand-in on non-Linux platforms, where the
// binder itself also falls back to a no-op implementation.
type LinkChecker struct{}

// NewLinkChecker returns a Checker that reports every interface as
// present, since there is no netlink to query.
func NewLinkChecker() *LinkChecker { return &LinkChecker{} }

// InterfaceExists always reports true on non-Linux platforms.
func (c *LinkChecker) InterfaceExists(name string) (bool, error) {
	return true, nil
}
