package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/membercore/integra/internal/record"
)

// snapshotFile is the YAML shape of a dataset snapshot. Collections are
// lists, so snapshot order becomes store insertion order.
type snapshotFile struct {
	Members       []*record.Member        `yaml:"members"`
	Payments      []*record.Payment       `yaml:"payments"`
	Subscriptions []*record.Subscription  `yaml:"subscriptions"`
	Documents     []*record.Document      `yaml:"documents"`
	Notifications []*record.Notification  `yaml:"notifications"`
	Balances      []*record.Balance       `yaml:"balances"`
	AuditLogs     []*record.AuditLogEntry `yaml:"audit_logs"`
}

// ParseSnapshot builds a store from YAML snapshot bytes.
// Unknown top-level or record fields are rejected.
func ParseSnapshot(data []byte) (*Store, error) {
	var file snapshotFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	s := New()
	put := func(c record.Collection, rec record.Record) error {
		if err := s.Put(c, rec); err != nil {
			return fmt.Errorf("snapshot %s: %w", c, err)
		}
		return nil
	}
	for _, m := range file.Members {
		if err := put(record.Members, m); err != nil {
			return nil, err
		}
	}
	for _, p := range file.Payments {
		if err := put(record.Payments, p); err != nil {
			return nil, err
		}
	}
	for _, sub := range file.Subscriptions {
		if err := put(record.Subscriptions, sub); err != nil {
			return nil, err
		}
	}
	for _, d := range file.Documents {
		if err := put(record.Documents, d); err != nil {
			return nil, err
		}
	}
	for _, n := range file.Notifications {
		if err := put(record.Notifications, n); err != nil {
			return nil, err
		}
	}
	for _, b := range file.Balances {
		if err := put(record.Balances, b); err != nil {
			return nil, err
		}
	}
	for _, e := range file.AuditLogs {
		if err := put(record.AuditLogs, e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadSnapshot reads a snapshot YAML file into a fresh store.
func LoadSnapshot(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	s, err := ParseSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return s, nil
}
