// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package governance tracks what personal data is stored where, for how
// long, and provides the GDPR/DPDP data-subject operations: retention
// cleanup, full export, and full deletion. All operations are
// best-effort: a failure on one key never blocks the others.
package governance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/kv"
	"github.com/prakritilabs/vedalytics/internal/metrics"
)

// Action categorizes audit log entries.
type Action string

// Audit actions.
const (
	ActionStored   Action = "stored"
	ActionExported Action = "exported"
	ActionDeleted  Action = "deleted"
	ActionPurged   Action = "purged"
)

// DefaultAuditCap bounds the audit log when no cap is configured.
const DefaultAuditCap = 500

// InventoryItem describes one stored record subject to retention.
type InventoryItem struct {
	Key           string    `json:"key"`
	Type          string    `json:"type"`
	RetentionDays int       `json:"retention_days"`
	CreatedAt     time.Time `json:"created_at"`
}

// AuditEntry is one append-only governance log record.
type AuditEntry struct {
	Action    Action    `json:"action"`
	DataType  string    `json:"data_type"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

// CleanupReport accounts for every inventory item present before a
// cleanup pass: cleaned + remaining + len(failures) covers them all.
type CleanupReport struct {
	Cleaned   int      `json:"cleaned"`
	Remaining int      `json:"remaining"`
	Failures  []string `json:"failures,omitempty"`
}

// DeletionReport summarizes a full data-subject deletion.
type DeletionReport struct {
	Deleted  int      `json:"deleted"`
	Failures []string `json:"failures,omitempty"`
}

// Export is the JSON document returned to a data-subject request.
type Export struct {
	VisitorID  string                     `json:"visitor_id"`
	ExportedAt time.Time                  `json:"exported_at"`
	Inventory  []InventoryItem            `json:"inventory"`
	Records    map[string]json.RawMessage `json:"records"`
}

// defaultRetention maps data types to retention days for the standard
// per-visitor records.
var defaultRetention = map[string]int{
	"consent":      365,
	"visitor":      365,
	"leadscore":    180,
	"segments":     180,
	"interests":    180,
	"abtest":       180,
	"chat":         90,
	"dosha":        365,
	"interactions": 90,
	"views":        90,
}

// standardKeys lists the per-visitor records registered at bootstrap,
// keyed by data type.
var standardKeys = map[string]func(visitorID string) string{
	"consent":      func(v string) string { return "consent:" + v },
	"visitor":      func(v string) string { return "visitor:" + v },
	"leadscore":    func(v string) string { return "leadscore:" + v },
	"segments":     func(v string) string { return "segments:" + v },
	"interests":    func(v string) string { return "interests:" + v },
	"chat":         func(v string) string { return "chat:" + v },
	"dosha":        func(v string) string { return "dosha:" + v },
	"interactions": func(v string) string { return "interactions:" + v },
	"views":        func(v string) string { return "views:" + v },
}

// Manager owns the data inventory and audit log.
type Manager struct {
	store    kv.Store
	auditCap int
	logger   zerolog.Logger
	now      func() time.Time

	// Serializes read-modify-write on the inventory and audit records.
	mu sync.Mutex
}

// NewManager creates a governance manager. auditCap <= 0 selects the
// default.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewManager(store kv.Store, auditCap int, logger zerolog.Logger) *Manager {
	if auditCap <= 0 {
		auditCap = DefaultAuditCap
	}
	return &Manager{
		store:    store,
		auditCap: auditCap,
		logger:   logger.With().Str("component", "governance").Logger(),
		now:      time.Now,
	}
}

// SetNow overrides the clock for tests.
func (m *Manager) SetNow(now func() time.Time) { m.now = now }

func inventoryKey(visitorID string) string { return "inventory:" + visitorID }

const auditKey = "audit"

// EnsureInventory registers the standard per-visitor records, keeping
// the original CreatedAt for items already present. Called at visitor
// bootstrap.
func (m *Manager) EnsureInventory(ctx context.Context, visitorID string) error {
	for dataType, keyFn := range standardKeys {
		if err := m.Register(ctx, visitorID, keyFn(visitorID), dataType, defaultRetention[dataType]); err != nil {
			return err
		}
	}
	return nil
}

// Register adds one record to the visitor's inventory. Re-registering
// an existing key is a no-op, preserving its retention clock.
func (m *Manager) Register(ctx context.Context, visitorID, key, dataType string, retentionDays int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.inventory(ctx, visitorID)
	for _, item := range items {
		if item.Key == key {
			return nil
		}
	}
	items = append(items, InventoryItem{
		Key:           key,
		Type:          dataType,
		RetentionDays: retentionDays,
		CreatedAt:     m.now().UTC(),
	})
	if err := kv.SetJSON(ctx, m.store, inventoryKey(visitorID), items); err != nil {
		return err
	}
	m.appendAudit(ctx, ActionStored, dataType, key)
	return nil
}

// RegisterAssignment records an A/B assignment key in the inventory so
// retention sweeps and erasure cover it. Assignments are per (visitor,
// test) and cannot be pre-registered at bootstrap.
func (m *Manager) RegisterAssignment(ctx context.Context, visitorID, key string) error {
	return m.Register(ctx, visitorID, key, "abtest", defaultRetention["abtest"])
}

// Inventory returns the visitor's registered items.
func (m *Manager) Inventory(ctx context.Context, visitorID string) []InventoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventory(ctx, visitorID)
}

// RunRetentionCleanup purges every inventory item older than its
// retention period, across all visitors. Per-key failures are reported
// and do not block other keys.
func (m *Manager) RunRetentionCleanup(ctx context.Context) (CleanupReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	invKeys, err := m.store.Keys(ctx, "inventory:")
	if err != nil {
		return CleanupReport{}, err
	}

	report := CleanupReport{}
	now := m.now().UTC()
	for _, invKey := range invKeys {
		visitorID := strings.TrimPrefix(invKey, "inventory:")
		items := m.inventory(ctx, visitorID)

		kept := items[:0]
		changed := false
		for _, item := range items {
			age := now.Sub(item.CreatedAt)
			if age <= time.Duration(item.RetentionDays)*24*time.Hour {
				kept = append(kept, item)
				report.Remaining++
				continue
			}
			if err := m.store.Delete(ctx, item.Key); err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
				metrics.StorageErrors.WithLabelValues("governance").Inc()
				m.logger.Warn().Err(err).Str("key", item.Key).Msg("retention purge failed")
				report.Failures = append(report.Failures, item.Key)
				kept = append(kept, item)
				continue
			}
			changed = true
			report.Cleaned++
			metrics.RetentionPurges.Inc()
			m.appendAudit(ctx, ActionPurged, item.Type, item.Key)
		}

		if changed {
			if err := kv.SetJSON(ctx, m.store, inventoryKey(visitorID), kept); err != nil {
				metrics.StorageErrors.WithLabelValues("governance").Inc()
				m.logger.Warn().Err(err).Str("visitor", visitorID).Msg("inventory rewrite failed")
			}
		}
	}

	m.logger.Info().
		Int("cleaned", report.Cleaned).
		Int("remaining", report.Remaining).
		Int("failures", len(report.Failures)).
		Msg("retention cleanup complete")
	return report, nil
}

// ExportUserData returns every inventoried record's current value for
// the visitor. Absent records are skipped, not errors.
func (m *Manager) ExportUserData(ctx context.Context, visitorID string) (Export, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.inventory(ctx, visitorID)
	export := Export{
		VisitorID:  visitorID,
		ExportedAt: m.now().UTC(),
		Inventory:  items,
		Records:    make(map[string]json.RawMessage, len(items)),
	}
	for _, item := range items {
		raw, err := m.store.Get(ctx, item.Key)
		if err != nil {
			if !errors.Is(err, kv.ErrKeyNotFound) {
				metrics.StorageErrors.WithLabelValues("governance").Inc()
				m.logger.Warn().Err(err).Str("key", item.Key).Msg("export read failed")
			}
			continue
		}
		if json.Valid(raw) {
			export.Records[item.Key] = json.RawMessage(raw)
		} else {
			quoted, _ := json.Marshal(string(raw))
			export.Records[item.Key] = quoted
		}
		m.appendAudit(ctx, ActionExported, item.Type, item.Key)
	}
	return export, nil
}

// DeleteAllUserData removes every inventoried key, the inventory
// itself, and the visitor's audit entries. Best-effort: per-key
// failures are reported, not fatal.
func (m *Manager) DeleteAllUserData(ctx context.Context, visitorID string) DeletionReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := DeletionReport{}
	items := m.inventory(ctx, visitorID)
	deleted := make(map[string]struct{}, len(items))
	for _, item := range items {
		if err := m.store.Delete(ctx, item.Key); err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("governance").Inc()
			m.logger.Warn().Err(err).Str("key", item.Key).Msg("deletion failed")
			report.Failures = append(report.Failures, item.Key)
			continue
		}
		deleted[item.Key] = struct{}{}
		report.Deleted++
	}

	// A/B assignments are keyed per (visitor, test); sweep the prefix so
	// any assignment that never reached the inventory still goes.
	if keys, err := m.store.Keys(ctx, "abtest:"+visitorID+":"); err == nil {
		for _, key := range keys {
			if _, done := deleted[key]; done {
				continue
			}
			if err := m.store.Delete(ctx, key); err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
				metrics.StorageErrors.WithLabelValues("governance").Inc()
				report.Failures = append(report.Failures, key)
				continue
			}
			deleted[key] = struct{}{}
			report.Deleted++
		}
	}

	if err := m.store.Delete(ctx, inventoryKey(visitorID)); err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
		report.Failures = append(report.Failures, inventoryKey(visitorID))
	} else {
		report.Deleted++
	}

	// Audit entries naming the removed keys go too.
	entries := m.auditLog(ctx)
	kept := entries[:0]
	for _, entry := range entries {
		if _, gone := deleted[entry.Key]; !gone {
			kept = append(kept, entry)
		}
	}
	if len(kept) != len(entries) {
		if err := kv.SetJSON(ctx, m.store, auditKey, kept); err != nil {
			metrics.StorageErrors.WithLabelValues("governance").Inc()
			m.logger.Warn().Err(err).Msg("audit rewrite failed")
		}
	}

	m.logger.Info().
		Str("visitor", visitorID).
		Int("deleted", report.Deleted).
		Int("failures", len(report.Failures)).
		Msg("data subject deletion complete")
	return report
}

// AuditLog returns the retained governance log, oldest first.
func (m *Manager) AuditLog(ctx context.Context) []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auditLog(ctx)
}

func (m *Manager) inventory(ctx context.Context, visitorID string) []InventoryItem {
	var items []InventoryItem
	if err := kv.GetJSON(ctx, m.store, inventoryKey(visitorID), &items); err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("governance").Inc()
			m.logger.Warn().Err(err).Str("visitor", visitorID).Msg("inventory read failed, treating as empty")
		}
		return nil
	}
	return items
}

func (m *Manager) auditLog(ctx context.Context) []AuditEntry {
	var entries []AuditEntry
	if err := kv.GetJSON(ctx, m.store, auditKey, &entries); err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("governance").Inc()
			m.logger.Warn().Err(err).Msg("audit read failed, treating as empty")
		}
		return nil
	}
	return entries
}

func (m *Manager) appendAudit(ctx context.Context, action Action, dataType, key string) {
	entries := m.auditLog(ctx)
	entries = append(entries, AuditEntry{
		Action:    action,
		DataType:  dataType,
		Key:       key,
		Timestamp: m.now().UTC(),
	})
	if len(entries) > m.auditCap {
		entries = entries[len(entries)-m.auditCap:]
	}
	if err := kv.SetJSON(ctx, m.store, auditKey, entries); err != nil {
		metrics.StorageErrors.WithLabelValues("governance").Inc()
		m.logger.Warn().Err(err).Msg("audit append failed")
	}
}
