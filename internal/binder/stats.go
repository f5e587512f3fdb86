// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package binder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"kitero.dev/kitero/internal/kitrouter"
)

var accountingLineRe = regexp.MustCompile(
	`--comment (?:"|)(?P<direction>up|down)-(?P<interface>[^"\s]+)-(?P<client>[0-9a-fA-F:.]+)(?:"|) -c (?P<packets>\d+) (?P<bytes>\d+)`)

// Stats implements kitrouter.StatsProvider by listing the accounting
// chain on every configured family and parsing each rule's comment
// and byte counter. Before setup has run it returns an empty mapping.
func (b *LinuxBinder) Stats() (map[string]kitrouter.InterfaceStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.view == nil {
		return map[string]kitrouter.InterfaceStats{}, nil
	}

	var lines []string
	for _, fam := range b.families() {
		listCmd := fmt.Sprintf("%s -t mangle -v -S %s", fam.iptables, b.cfg.AccountingChain)
		out, err := b.runner.Run([]string{listCmd}, nil, true)
		if err != nil {
			return nil, err
		}
		for _, chunk := range out {
			lines = append(lines, strings.Split(chunk, "\n")...)
		}
	}

	return parseAccountingLines(lines), nil
}

func parseAccountingLines(lines []string) map[string]kitrouter.InterfaceStats {
	type accum struct {
		up, down int64
		clients  map[string]*kitrouter.ClientStats
	}
	agg := make(map[string]*accum)

	for _, line := range lines {
		m := accountingLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		direction, iface, client := m[1], m[2], m[3]
		bytesVal, err := strconv.ParseInt(m[5], 10, 64)
		if err != nil {
			continue
		}

		a, ok := agg[iface]
		if !ok {
			a = &accum{clients: make(map[string]*kitrouter.ClientStats)}
			agg[iface] = a
		}
		cs, ok := a.clients[client]
		if !ok {
			cs = &kitrouter.ClientStats{}
			a.clients[client] = cs
		}

		v := bytesVal
		switch direction {
		case "up":
			cs.Up = &v
			a.up += bytesVal
		case "down":
			cs.Down = &v
			a.down += bytesVal
		}
	}

	result := make(map[string]kitrouter.InterfaceStats, len(agg))
	for iface, a := range agg {
		details := make(map[string]kitrouter.ClientStats, len(a.clients))
		for client, cs := range a.clients {
			details[client] = *cs
		}
		result[iface] = kitrouter.InterfaceStats{
			Clients: len(a.clients),
			Up:      a.up,
			Down:    a.down,
			Details: details,
		}
	}
	return result
}
