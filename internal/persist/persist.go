// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package persist implements the router's binding persistence and
// bind/unbind audit trail: a JSON snapshot of the client table,
// written atomically and restored at startup.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"kitero.dev/kitero/internal/kerrors"
	"kitero.dev/kitero/internal/kitrouter"
	"kitero.dev/kitero/internal/logging"
)

// entry is one row of the persisted snapshot.
type entry struct {
	Client    string `json:"client"`
	Interface string `json:"interface"`
	QoS       string `json:"qos"`
}

// PersistentBinder is a kitrouter.Binder that mirrors every bind and
// unbind to a JSON snapshot file, and appends a one-line audit record
// to a companion log. It keeps its own copy of the client table,
// since a RouterView exposes only single-client lookups, not
// enumeration. It is typically registered alongside the real
// network-programming binder so both observe the same events.
type PersistentBinder struct {
	mu        sync.Mutex
	path      string
	auditPath string
	log       *logging.Logger
	entries   map[string]entry
}

// New returns a PersistentBinder writing its snapshot to path and its
// audit trail to path + ".audit".
func New(path string) *PersistentBinder {
	return &PersistentBinder{
		path:      path,
		auditPath: path + ".audit",
		log:       logging.New(logging.DefaultConfig()).WithComponent("persist"),
		entries:   make(map[string]entry),
	}
}

// Notify implements kitrouter.Binder. It never rejects a bind or
// unbind: persistence failures are logged, not propagated, since
// losing the on-disk mirror must not stop the network state from
// changing.
func (p *PersistentBinder) Notify(view kitrouter.RouterView, event string, args kitrouter.NotifyArgs) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch event {
	case kitrouter.EventBind:
		p.entries[args.Client] = entry{Client: args.Client, Interface: args.Interface, QoS: args.QoS}
	case kitrouter.EventUnbind:
		delete(p.entries, args.Client)
	}

	if err := p.writeSnapshotLocked(); err != nil {
		p.log.Warn("failed to persist binding snapshot", "error", err)
	}
	p.appendAudit(event, args)

	return nil
}

func (p *PersistentBinder) writeSnapshotLocked() error {
	data, err := json.MarshalIndent(p.entries, "", "  ")
	if err != nil {
		return kerrors.Wrap(err, kerrors.KindTransport, "persist: marshal snapshot")
	}
	return SecureWriteFile(p.path, data)
}

func (p *PersistentBinder) appendAudit(event string, args kitrouter.NotifyArgs) {
	rec := struct {
		TS        string `json:"ts"`
		ID        string `json:"id"`
		Event     string `json:"event"`
		Client    string `json:"client"`
		Interface string `json:"interface,omitempty"`
		QoS       string `json:"qos,omitempty"`
	}{
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		ID:        uuid.New().String(),
		Event:     event,
		Client:    args.Client,
		Interface: args.Interface,
		QoS:       args.QoS,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		p.log.Warn("failed to marshal audit record", "error", err)
		return
	}

	f, err := os.OpenFile(p.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		p.log.Warn("failed to open audit log", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		p.log.Warn("failed to append audit record", "error", err)
	}
}

// NotePassword appends an audit record noting only whether a
// bind_client call carried a password argument, not its value. It is
// called directly by the RPC layer, outside the Notify fan-out, since
// the router's Bind signature carries no password argument.
func (p *PersistentBinder) NotePassword(client string, present bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := struct {
		ID       string `json:"id"`
		Event    string `json:"event"`
		Client   string `json:"client"`
		Password bool   `json:"password"`
	}{
		ID:       uuid.New().String(),
		Event:    "bind_password",
		Client:   client,
		Password: present,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		p.log.Warn("failed to marshal password audit record", "error", err)
		return
	}

	f, err := os.OpenFile(p.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		p.log.Warn("failed to open audit log", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		p.log.Warn("failed to append password audit record", "error", err)
	}
}

// Restore reads the snapshot file (a missing file is not an error —
// it just means an empty start) and binds every entry against router,
// logging and skipping any entry that fails to bind rather than
// aborting startup. Register p against router before calling Restore
// so the restored bindings are mirrored back into p's own table.
func Restore(path string, router *kitrouter.Router) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return kerrors.Wrapf(err, kerrors.KindTransport, "persist: reading snapshot %q", path)
	}

	var entries map[string]entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return kerrors.Wrapf(err, kerrors.KindTransport, "persist: parsing snapshot %q", path)
	}

	log := logging.New(logging.DefaultConfig()).WithComponent("persist")
	for client, e := range entries {
		if err := router.Bind(e.Client, e.Interface, e.QoS); err != nil {
			log.Warn("failed to restore binding", "client", client, "interface", e.Interface, "qos", e.QoS, "error", err)
		}
	}
	return nil
}

// SecureWriteFile writes data to filename with owner-only permissions
// via a temp-file-then-rename sequence, so a reader never observes a
// partially written snapshot.
func SecureWriteFile(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return kerrors.Wrapf(err, kerrors.KindTransport, "persist: creating directory %q", dir)
	}

	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return kerrors.Wrapf(err, kerrors.KindTransport, "persist: writing temp file %q", tmp)
	}

	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return kerrors.Wrapf(err, kerrors.KindTransport, "persist: renaming %q to %q", tmp, filename)
	}

	return nil
}
