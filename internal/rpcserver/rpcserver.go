// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rpcserver implements the helper's line-delimited JSON RPC
// protocol: each request line is a JSON array whose first element is
// the method name and remaining elements are positional arguments;
// each response line is a JSON object carrying either a successful
// value or an exception envelope.
package rpcserver

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"runtime/debug"

	"github.com/google/uuid"

	"kitero.dev/kitero/internal/kerrors"
	"kitero.dev/kitero/internal/kitrouter"
	"kitero.dev/kitero/internal/logging"
)

// StatsObserver receives every stats() result served over RPC, used
// to mirror aggregated counters onto Prometheus gauges without the
// RPC server depending on the metrics package directly.
type StatsObserver interface {
	Observe(stats map[string]kitrouter.InterfaceStats)
}

// PasswordAuditor records whether a bind_client call carried a
// password argument, without seeing its value.
type PasswordAuditor interface {
	NotePassword(client string, present bool)
}

// Server serves the helper's RPC protocol against a single router,
// accepting one goroutine per connection. All router-mutating and
// router-snapshotting calls serialize through router's own lock; the
// server itself holds no additional lock.
type Server struct {
	router  *kitrouter.Router
	log     *logging.Logger
	stats   StatsObserver
	auditor PasswordAuditor

	listener net.Listener
}

// New returns a Server dispatching exposed methods against router.
func New(router *kitrouter.Router) *Server {
	return &Server{
		router: router,
		log:    logging.New(logging.DefaultConfig()).WithComponent("rpcserver"),
	}
}

// SetStatsObserver installs a StatsObserver invoked after every stats()
// call. Passing nil disables observation.
func (s *Server) SetStatsObserver(obs StatsObserver) {
	s.stats = obs
}

// SetPasswordAuditor installs a PasswordAuditor invoked for every
// bind_client call that carries a password argument, before the bind
// itself is attempted. Passing nil disables auditing.
func (s *Server) SetPasswordAuditor(auditor PasswordAuditor) {
	s.auditor = auditor
}

// Serve starts accepting connections on listener and dispatches each
// to its own goroutine. It blocks until the listener is closed, at
// which point it returns nil.
func (s *Server) Serve(listener net.Listener) error {
	s.listener = listener
	s.log.Info("rpc server listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return kerrors.Wrap(err, kerrors.KindTransport, "rpcserver: accept")
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	connID := uuid.New().String()
	defer conn.Close()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("rpc connection handler panicked", "conn", connID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		line, err := reader.ReadString('\n')
		if len(line) == 0 && err != nil {
			return
		}

		resp := s.dispatch(connID, line)
		data, marshalErr := json.Marshal(resp)
		if marshalErr != nil {
			s.log.Error("failed to marshal rpc response", "conn", connID, "error", marshalErr)
			return
		}

		if _, writeErr := writer.Write(append(data, '\n')); writeErr != nil {
			return
		}
		if writeErr := writer.Flush(); writeErr != nil {
			return
		}

		if err != nil {
			return
		}
	}
}

func (s *Server) dispatch(connID, line string) response {
	var call []json.RawMessage
	if err := json.Unmarshal([]byte(line), &call); err != nil {
		return errorResponse(fmt.Errorf("invalid RPC: not a JSON array"))
	}
	if len(call) == 0 {
		return errorResponse(fmt.Errorf("invalid RPC: empty list"))
	}

	var method string
	if err := json.Unmarshal(call[0], &method); err != nil {
		return errorResponse(fmt.Errorf("invalid RPC: method name must be a string"))
	}

	args := call[1:]
	fn, ok := exposedMethods[method]
	if !ok {
		return errorResponse(fmt.Errorf("method %q is not exported", method))
	}

	s.log.Debug("executing rpc method", "conn", connID, "method", method, "args", len(args))

	value, err := fn(s, args)
	if err != nil {
		return errorResponse(err)
	}
	return response{Status: 0, Value: value}
}

type response struct {
	Status    int        `json:"status"`
	Value     any        `json:"value,omitempty"`
	Exception *exception `json:"exception,omitempty"`
}

type exception struct {
	Class     string `json:"class"`
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
}

func errorResponse(err error) response {
	class := "Error"
	var kerr *kerrors.Error
	if errors.As(err, &kerr) {
		class = kerr.Kind.String()
	}
	return response{
		Status: -1,
		Exception: &exception{
			Class:   class,
			Message: err.Error(),
		},
	}
}
