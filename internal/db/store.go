package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/petergaultney/lemonaid/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrArchived marks an operation refused because the channel's row is
	// archived. Archived is terminal; callers wanting a fresh record mint a
	// new row via Upsert.
	ErrArchived = errors.New("archived")
)

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("chmod db path: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// Upsert creates or updates the channel's active notification. If no
// non-archived row exists a new one is inserted with status=unread and
// created_at=now. If one exists, message is always updated; metadata is
// replaced only when non-nil and switchSource only when non-empty; name,
// status and created_at are left untouched.
func (s *Store) Upsert(ctx context.Context, channel, message string, metadata map[string]string, switchSource string) (model.Notification, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Notification{}, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := getActiveTx(ctx, tx, channel)
	switch {
	case err == nil:
		if metadata != nil {
			existing.Metadata = metadata
		}
		if switchSource != "" {
			existing.SwitchSource = switchSource
		}
		existing.Message = message
		metadataJSON, err := marshalMetadata(existing.Metadata)
		if err != nil {
			return model.Notification{}, err
		}
		_, err = tx.ExecContext(ctx, `
UPDATE notifications
SET message = ?, metadata = ?, switch_source = ?
WHERE id = ?
`, existing.Message, metadataJSON, nullableStr(existing.SwitchSource), existing.ID)
		if err != nil {
			return model.Notification{}, fmt.Errorf("update notification: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return model.Notification{}, fmt.Errorf("commit upsert: %w", err)
		}
		return existing, nil
	case errors.Is(err, ErrNotFound):
		now := time.Now()
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadataJSON, err := marshalMetadata(metadata)
		if err != nil {
			return model.Notification{}, err
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO notifications(channel, message, metadata, status, created_at, switch_source)
VALUES (?, ?, ?, 'unread', ?, ?)
`, channel, message, metadataJSON, unixSeconds(now), nullableStr(switchSource))
		if err != nil {
			return model.Notification{}, fmt.Errorf("insert notification: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return model.Notification{}, fmt.Errorf("notification id: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return model.Notification{}, fmt.Errorf("commit upsert: %w", err)
		}
		return model.Notification{
			ID:           id,
			Channel:      channel,
			Message:      message,
			Metadata:     metadata,
			Status:       model.StatusUnread,
			CreatedAt:    now,
			SwitchSource: switchSource,
		}, nil
	default:
		return model.Notification{}, err
	}
}

// MarkRead sets status=read on the channel's unread row. A channel that is
// absent, already read, or archived is left untouched; the returned bool
// reports whether a row changed.
func (s *Store) MarkRead(ctx context.Context, channel string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE notifications
SET status = 'read', read_at = ?
WHERE channel = ? AND status = 'unread'
`, unixSeconds(time.Now()), channel)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark read rows: %w", err)
	}
	return n > 0, nil
}

// MarkUnread flips the channel's active row back to unread and resets
// created_at to now. The reset makes the unread transition the newest fact
// about the channel, so watcher passes working from older transcript state
// cannot immediately undo it. Archived rows are never touched.
func (s *Store) MarkUnread(ctx context.Context, channel string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE notifications
SET status = 'unread', created_at = ?, read_at = NULL
WHERE channel = ? AND status != 'archived'
`, unixSeconds(time.Now()), channel)
	if err != nil {
		return false, fmt.Errorf("mark unread: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark unread rows: %w", err)
	}
	return n > 0, nil
}

// Archive terminates the channel's active row. No status transition leaves
// archived; a later Upsert on the same channel creates a distinct record.
func (s *Store) Archive(ctx context.Context, channel string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE notifications
SET status = 'archived'
WHERE channel = ? AND status != 'archived'
`, channel)
	if err != nil {
		return false, fmt.Errorf("archive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("archive rows: %w", err)
	}
	return n > 0, nil
}

// UpdateMessage rewrites only the message of the channel's active row,
// leaving status, created_at and everything else alone. The watcher's
// anti-regression restore goes through here.
func (s *Store) UpdateMessage(ctx context.Context, channel, message string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE notifications
SET message = ?
WHERE channel = ? AND status != 'archived'
`, message, channel)
	if err != nil {
		return false, fmt.Errorf("update message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update message rows: %w", err)
	}
	return n > 0, nil
}

// Rename sets or clears the sticky user name override on the channel's
// active row. Setting a name for the first time stashes the previous
// auto-derived name in metadata so clearing the override can restore it.
func (s *Store) Rename(ctx context.Context, channel, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rename tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := getActiveTx(ctx, tx, channel)
	if err != nil {
		return err
	}

	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	finalName := name
	if name != "" {
		if _, ok := metadata[model.MetaAutoName]; !ok && n.Name != "" {
			metadata[model.MetaAutoName] = n.Name
		}
	} else {
		finalName = metadata[model.MetaAutoName]
		delete(metadata, model.MetaAutoName)
	}

	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE notifications
SET name = ?, metadata = ?
WHERE id = ?
`, nullableStr(finalName), metadataJSON, n.ID); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rename: %w", err)
	}
	return nil
}

// Get returns the channel's active (non-archived) notification.
func (s *Store) Get(ctx context.Context, channel string) (model.Notification, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, channel, name, message, metadata, status, created_at, read_at, switch_source
FROM notifications
WHERE channel = ? AND status != 'archived'
`, channel)
	return scanNotification(row)
}

// ListActive returns non-archived notifications, unread first, then newest
// created_at. When the filter carries a switch source the result is
// partitioned into switchable (matching source, or none recorded) and
// non-switchable; otherwise everything lands in Switchable.
func (s *Store) ListActive(ctx context.Context, filter model.ListFilter) (model.Listing, error) {
	query := `
SELECT id, channel, name, message, metadata, status, created_at, read_at, switch_source
FROM notifications
WHERE status != 'archived'`
	if filter.UnreadOnly {
		query += ` AND status = 'unread'`
	}
	query += `
ORDER BY CASE status WHEN 'unread' THEN 0 ELSE 1 END, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return model.Listing{}, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var listing model.Listing
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return model.Listing{}, err
		}
		switch {
		case filter.SwitchSource == "" || n.SwitchSource == "" || n.SwitchSource == filter.SwitchSource:
			listing.Switchable = append(listing.Switchable, n)
		default:
			listing.NonSwitchable = append(listing.NonSwitchable, n)
		}
	}
	if err := rows.Err(); err != nil {
		return model.Listing{}, fmt.Errorf("iter notifications: %w", err)
	}
	return listing, nil
}

// MarkReadByTTY dismisses every unread notification whose metadata records
// the given TTY. Returns the number of rows changed.
func (s *Store) MarkReadByTTY(ctx context.Context, tty string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE notifications
SET status = 'read', read_at = ?
WHERE json_extract(metadata, '$.tty') = ? AND status = 'unread'
`, unixSeconds(time.Now()), tty)
	if err != nil {
		return 0, fmt.Errorf("mark read by tty: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark read by tty rows: %w", err)
	}
	return n, nil
}

// Prune deletes read and archived rows whose last relevant timestamp is
// older than the cutoff. Returns the number of rows deleted.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := unixSeconds(time.Now().Add(-olderThan))
	res, err := s.db.ExecContext(ctx, `
DELETE FROM notifications
WHERE status IN ('read', 'archived')
AND (read_at < ? OR (read_at IS NULL AND created_at < ?))
`, cutoff, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (model.Notification, error) {
	var (
		n            model.Notification
		name         sql.NullString
		metadataJSON string
		status       string
		createdAt    float64
		readAt       sql.NullFloat64
		switchSource sql.NullString
	)
	err := row.Scan(&n.ID, &n.Channel, &name, &n.Message, &metadataJSON, &status, &createdAt, &readAt, &switchSource)
	if err == sql.ErrNoRows {
		return model.Notification{}, ErrNotFound
	}
	if err != nil {
		return model.Notification{}, fmt.Errorf("scan notification: %w", err)
	}
	n.Name = name.String
	n.Status = model.Status(status)
	n.CreatedAt = fromUnixSeconds(createdAt)
	if readAt.Valid {
		t := fromUnixSeconds(readAt.Float64)
		n.ReadAt = &t
	}
	n.SwitchSource = switchSource.String
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &n.Metadata); err != nil {
			// Malformed metadata is stored as-is and never fatal; surface an
			// empty map rather than failing the read.
			n.Metadata = map[string]string{}
		}
	}
	if n.Metadata == nil {
		n.Metadata = map[string]string{}
	}
	return n, nil
}

func getActiveTx(ctx context.Context, tx *sql.Tx, channel string) (model.Notification, error) {
	row := tx.QueryRowContext(ctx, `
SELECT id, channel, name, message, metadata, status, created_at, read_at, switch_source
FROM notifications
WHERE channel = ? AND status != 'archived'
`, channel)
	return scanNotification(row)
}

func marshalMetadata(metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func fromUnixSeconds(sec float64) time.Time {
	return time.UnixMicro(int64(sec * 1e6))
}
