// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"io"
	"log/syslog"
)

// SyslogConfig configures forwarding of log entries to a syslog daemon.
// Facility uses the standard syslog facility numbers (0=kern, 1=user,
// 2=mail, ...), not Go's pre-shifted syslog.Priority encoding. A zero
// Facility is replaced by 1 (user) in NewSyslogWriter, so kern cannot
// be selected.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns syslog forwarding disabled, with the
// standard UDP/514/facility=user defaults it would use if enabled.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "kitero",
		Facility: 1,
	}
}

// NewSyslogWriter dials the syslog daemon described by cfg and returns
// an io.Writer suitable for use as a Logger's Output.
func NewSyslogWriter(cfg SyslogConfig) (io.Writer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog host is required")
	}

	protocol := cfg.Protocol
	if protocol == "" {
		protocol = "udp"
	}

	port := cfg.Port
	if port == 0 {
		port = 514
	}

	tag := cfg.Tag
	if tag == "" {
		tag = "kitero"
	}

	facility := cfg.Facility
	if facility == 0 {
		facility = 1
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, port)
	priority := syslog.Priority(facility<<3) | syslog.LOG_INFO
	w, err := syslog.Dial(protocol, addr, priority, tag)
	if err != nil {
		return nil, fmt.Errorf("logging: dial syslog %s://%s: %w", protocol, addr, err)
	}
	return w, nil
}
