// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rpcserver

import (
	"encoding/json"
	"fmt"

	"kitero.dev/kitero/internal/kitrouter"
)

// handlerFunc is an exposed RPC handler. args holds the call's
// positional arguments as raw JSON, already stripped of the method name.
type handlerFunc func(s *Server, args []json.RawMessage) (any, error)

// exposedMethods is the complete set of RPC methods reachable from the
// wire. Anything not listed here is rejected by dispatch as "not
// exported".
var exposedMethods = map[string]handlerFunc{
	"ping":          methodPing,
	"interfaces":    methodInterfaces,
	"client":        methodClient,
	"bind_client":   methodBindClient,
	"unbind_client": methodUnbindClient,
	"stats":         methodStats,
}

func methodPing(s *Server, args []json.RawMessage) (any, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("ping: expected 0 arguments, got %d", len(args))
	}
	return "pong", nil
}

// interfaceInfo and qosInfo flatten qos settings (bandwidth, netem,
// ...) alongside description at the same level rather than nesting
// them further.
type interfaceInfo struct {
	Description string             `json:"description"`
	QoS         map[string]qosInfo `json:"qos"`
}

type qosInfo struct {
	Description string         `json:"description"`
	Settings    map[string]any `json:"-"`
}

func (q qosInfo) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(q.Settings)+1)
	for k, v := range q.Settings {
		flat[k] = v
	}
	flat["description"] = q.Description
	return json.Marshal(flat)
}

func methodInterfaces(s *Server, args []json.RawMessage) (any, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("interfaces: expected 0 arguments, got %d", len(args))
	}

	ifaces := s.router.Interfaces()
	out := make(map[string]interfaceInfo, len(ifaces))
	for id, iface := range ifaces {
		qos := make(map[string]qosInfo, len(iface.QoS))
		for qosID, q := range iface.QoS {
			qos[qosID] = qosInfo{Description: q.Description, Settings: q.Settings}
		}
		out[id] = interfaceInfo{Description: iface.Description, QoS: qos}
	}
	return out, nil
}

func methodClient(s *Server, args []json.RawMessage) (any, error) {
	ip, err := stringArg(args, 0, "client")
	if err != nil {
		return nil, err
	}

	binding, ok := s.router.Client(ip)
	if !ok {
		return nil, nil
	}
	return [2]string{binding.Interface, binding.QoS}, nil
}

func methodBindClient(s *Server, args []json.RawMessage) (any, error) {
	if len(args) < 3 || len(args) > 4 {
		return nil, fmt.Errorf("bind_client: expected 3 or 4 arguments, got %d", len(args))
	}

	ip, err := stringArg(args, 0, "bind_client")
	if err != nil {
		return nil, err
	}
	iface, err := stringArg(args, 1, "bind_client")
	if err != nil {
		return nil, err
	}
	qos, err := stringArg(args, 2, "bind_client")
	if err != nil {
		return nil, err
	}

	hadPassword := len(args) == 4
	if hadPassword {
		if _, err := stringArg(args, 3, "bind_client"); err != nil {
			return nil, err
		}
	}
	if s.auditor != nil && hadPassword {
		s.auditor.NotePassword(ip, true)
	}

	// bind_client unbinds any previous binding of the same client
	// first, atomically: Rebind holds the router's lock across both
	// steps so a concurrent bind_client for the same client can't
	// observe or act on the momentarily-unbound state.
	if err := s.router.Rebind(ip, iface, qos); err != nil {
		return nil, err
	}
	return nil, nil
}

func methodUnbindClient(s *Server, args []json.RawMessage) (any, error) {
	ip, err := stringArg(args, 0, "unbind_client")
	if err != nil {
		return nil, err
	}
	if err := s.router.Unbind(ip); err != nil {
		return nil, err
	}
	return nil, nil
}

func methodStats(s *Server, args []json.RawMessage) (any, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("stats: expected 0 arguments, got %d", len(args))
	}

	stats, err := s.router.Stats()
	if err != nil {
		return nil, err
	}
	if s.stats != nil {
		s.stats.Observe(stats)
	}
	return statsResponse(stats), nil
}

func statsResponse(stats map[string]kitrouter.InterfaceStats) map[string]any {
	out := make(map[string]any, len(stats))
	for iface, s := range stats {
		details := make(map[string]any, len(s.Details))
		for client, cs := range s.Details {
			entry := make(map[string]any, 2)
			if cs.Up != nil {
				entry["up"] = *cs.Up
			}
			if cs.Down != nil {
				entry["down"] = *cs.Down
			}
			details[client] = entry
		}
		out[iface] = map[string]any{
			"clients": s.Clients,
			"up":      s.Up,
			"down":    s.Down,
			"details": details,
		}
	}
	return out
}

func stringArg(args []json.RawMessage, idx int, method string) (string, error) {
	if idx >= len(args) {
		return "", fmt.Errorf("%s: missing argument %d", method, idx)
	}
	var v string
	if err := json.Unmarshal(args[idx], &v); err != nil {
		return "", fmt.Errorf("%s: argument %d must be a string", method, idx)
	}
	return v, nil
}
