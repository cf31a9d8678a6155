// Package eventlog persists marketplace notifications in an append-only table
// so operators can audit what happened to a record. Every entry carries a
// blake3 digest chained to its predecessor, which Verify recomputes.
package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"propchain/core/events"
	"propchain/core/types"
)

// MemoryDSN opens a private in-memory database. Every Open with it gets a
// fresh log.
const MemoryDSN = "file::memory:"

var (
	// ErrPathRequired is returned when no DSN is supplied.
	ErrPathRequired = errors.New("eventlog: dsn must be configured")
	// ErrChainBroken reports an entry whose digest does not match its
	// contents and predecessor.
	ErrChainBroken = errors.New("eventlog: digest chain broken")
)

// recordKeys lists the attributes that name the primary record of an event,
// in lookup order.
var recordKeys = []string{"id", "agreementId", "transactionId", "propertyId"}

// Entry is a single persisted notification. Seq is assigned on insert and
// reflects delivery order.
type Entry struct {
	Seq        uint64 `gorm:"primaryKey;autoIncrement"`
	Type       string `gorm:"size:64;index"`
	RecordID   string `gorm:"size:64;index"`
	PropertyID string `gorm:"size:64;index"`
	Attributes string `gorm:"type:text"`
	Digest     string `gorm:"size:64"`
	CreatedAt  time.Time
}

// TableName pins the table name independent of gorm's pluralisation.
func (Entry) TableName() string { return "marketplace_events" }

// Event decodes the stored attributes back into the canonical payload.
func (e Entry) Event() (*types.Event, error) {
	attrs := make(map[string]string)
	if strings.TrimSpace(e.Attributes) != "" {
		if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("eventlog: decode entry %d: %w", e.Seq, err)
		}
	}
	return &types.Event{Type: e.Type, Attributes: attrs}, nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type       string
	RecordID   string
	PropertyID string
	AfterSeq   uint64
	Limit      int
}

// Log is an events.Emitter backed by gorm.
type Log struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to the database named by dsn and migrates the event table.
// postgres:// and postgresql:// URLs select Postgres; anything else is a
// sqlite path or URI.
func Open(dsn string) (*Log, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	dialector := dialectorFor(trimmed)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil && dialector.Name() == "sqlite" {
		// sqlite allows one writer; a single connection also keeps an
		// in-memory database alive and shared.
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

func dialectorFor(dsn string) gorm.Dialector {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// New wraps an existing gorm handle, migrating the event table.
func New(db *gorm.DB) (*Log, error) {
	if db == nil {
		return nil, errors.New("eventlog: database not configured")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &Log{db: db, logger: slog.Default(), now: time.Now}, nil
}

// SetLogger overrides the logger used to report persistence failures.
func (l *Log) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	l.logger = logger
}

// Close releases the underlying connection pool.
func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit persists evt. Events without a payload are ignored. Emit never fails
// the caller: the state change already committed, so write errors are logged.
func (l *Log) Emit(evt events.Event) {
	if l == nil || l.db == nil {
		return
	}
	payload := events.PayloadOf(evt)
	if payload == nil {
		return
	}
	if _, err := l.Append(context.Background(), payload); err != nil {
		l.logger.Error("eventlog: append failed",
			slog.String("type", payload.Type),
			slog.Any("error", err))
	}
}

// Append stores payload and returns the persisted entry.
func (l *Log) Append(ctx context.Context, payload *types.Event) (*Entry, error) {
	if payload == nil {
		return nil, errors.New("eventlog: nil payload")
	}
	attrs := payload.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("eventlog: encode attributes: %w", err)
	}
	entry := &Entry{
		Type:       payload.Type,
		RecordID:   recordID(attrs),
		PropertyID: attrs["propertyId"],
		Attributes: string(encoded),
		CreatedAt:  l.now().UTC(),
	}
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev Entry
		res := tx.Order("seq DESC").Limit(1).Find(&prev)
		if res.Error != nil {
			return res.Error
		}
		entry.Digest = chainDigest(prev.Digest, entry.Type, entry.Attributes)
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: insert: %w", err)
	}
	return entry, nil
}

// Verify recomputes the digest chain from the first entry and returns the
// number of entries checked. A mismatch wraps ErrChainBroken and names the
// first offending sequence number.
func (l *Log) Verify(ctx context.Context) (int, error) {
	if l == nil || l.db == nil {
		return 0, errors.New("eventlog: database not configured")
	}
	var entries []Entry
	if err := l.db.WithContext(ctx).Order("seq ASC").Find(&entries).Error; err != nil {
		return 0, fmt.Errorf("eventlog: verify: %w", err)
	}
	prev := ""
	for i, entry := range entries {
		want := chainDigest(prev, entry.Type, entry.Attributes)
		if entry.Digest != want {
			return i, fmt.Errorf("%w at seq %d", ErrChainBroken, entry.Seq)
		}
		prev = entry.Digest
	}
	return len(entries), nil
}

// chainDigest hashes the previous digest, the event type and its encoded
// attributes. Variable-length fields are length prefixed.
func chainDigest(prev, eventType, attributes string) string {
	prevBytes, err := hex.DecodeString(prev)
	if err != nil {
		prevBytes = []byte(prev)
	}
	buf := make([]byte, 0, len(prevBytes)+len(eventType)+len(attributes)+16)
	buf = append(buf, prevBytes...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(eventType)))
	buf = append(buf, eventType...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(attributes)))
	buf = append(buf, attributes...)
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// List returns entries matching filter in delivery order.
func (l *Log) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("eventlog: database not configured")
	}
	query := l.db.WithContext(ctx).Model(&Entry{})
	if t := strings.TrimSpace(filter.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if id := normalizeHex(filter.RecordID); id != "" {
		query = query.Where("record_id = ?", id)
	}
	if id := normalizeHex(filter.PropertyID); id != "" {
		query = query.Where("property_id = ?", id)
	}
	if filter.AfterSeq > 0 {
		query = query.Where("seq > ?", filter.AfterSeq)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var entries []Entry
	if err := query.Order("seq ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("eventlog: list: %w", err)
	}
	return entries, nil
}

func recordID(attrs map[string]string) string {
	for _, key := range recordKeys {
		if value := strings.TrimSpace(attrs[key]); value != "" {
			return value
		}
	}
	return ""
}

func normalizeHex(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	return strings.TrimPrefix(trimmed, "0x")
}
