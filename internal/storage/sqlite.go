package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"topicpush/internal/model"
	"topicpush/migrations"
)

// SQLite implements Storage backed by a SQLite database.
// Scan order is insertion order.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := migrations.Up(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// AddItem inserts an item unless one with the same ID exists.
// It reports whether a row was created.
func (s *SQLite) AddItem(ctx context.Context, item *model.Item) (bool, error) {
	topics, err := json.Marshal(item.Topics)
	if err != nil {
		return false, fmt.Errorf("encode topics: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO items (id, url, topics, added_epoch, added_str, topic_mask)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.URL, string(topics), item.AddedEpoch, nullString(item.AddedStr), nullMask(item),
	)
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListItems returns all items.
func (s *SQLite) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, topics, added_epoch, added_str, topic_mask FROM items ORDER BY rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		var topics string
		var addedStr sql.NullString
		var mask sql.NullInt64
		if err := rows.Scan(&it.ID, &it.URL, &topics, &it.AddedEpoch, &addedStr, &mask); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(topics), &it.Topics); err != nil {
			return nil, fmt.Errorf("decode topics of item %s: %w", it.ID, err)
		}
		it.AddedStr = addedStr.String
		it.TopicMask = mask.Int64
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateItemDerived sets the derived timestamp and topic mask of an item.
func (s *SQLite) UpdateItemDerived(ctx context.Context, id, addedStr string, mask int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET added_str = ?, topic_mask = ? WHERE id = ?`,
		addedStr, mask, id,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update item %s: %w", id, ErrNotFound)
	}
	return nil
}

// PutUser inserts or replaces a user.
func (s *SQLite) PutUser(ctx context.Context, user *model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, active, topic_mask) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET email = excluded.email, active = excluded.active,
		   topic_mask = excluded.topic_mask`,
		user.ID, user.Email, boolToInt(user.Active), user.TopicMask,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// ListUsers returns all users.
func (s *SQLite) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, active, topic_mask FROM users ORDER BY rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		var u model.User
		var active int
		if err := rows.Scan(&u.ID, &u.Email, &active, &u.TopicMask); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Active = active == 1
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListPushRecords returns all push records.
func (s *SQLite) ListPushRecords(ctx context.Context) ([]model.PushRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, email, pushed_count, pushed_ids FROM push_history ORDER BY rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("query push history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []model.PushRecord
	for rows.Next() {
		rec, err := scanPushRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// GetPushRecord returns the push record of a user, or ErrNotFound.
func (s *SQLite) GetPushRecord(ctx context.Context, userID string) (*model.PushRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, email, pushed_count, pushed_ids FROM push_history WHERE user_id = ?`, userID,
	)
	rec, err := scanPushRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// PutPushRecord replaces the push record of a user as a whole.
func (s *SQLite) PutPushRecord(ctx context.Context, rec *model.PushRecord) error {
	ids, err := json.Marshal(normalizeIDs(rec.ItemIDs))
	if err != nil {
		return fmt.Errorf("encode pushed ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO push_history (user_id, email, pushed_count, pushed_ids) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET email = excluded.email,
		   pushed_count = excluded.pushed_count, pushed_ids = excluded.pushed_ids`,
		rec.UserID, rec.Email, rec.Count, string(ids),
	)
	if err != nil {
		return fmt.Errorf("upsert push record: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullMask(item *model.Item) any {
	if item.AddedStr == "" {
		return nil
	}
	return item.TopicMask
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPushRecord(row scannable) (*model.PushRecord, error) {
	var rec model.PushRecord
	var ids string
	if err := row.Scan(&rec.UserID, &rec.Email, &rec.Count, &ids); err != nil {
		return nil, fmt.Errorf("scan push record: %w", err)
	}
	if err := json.Unmarshal([]byte(ids), &rec.ItemIDs); err != nil {
		return nil, fmt.Errorf("decode pushed ids of %s: %w", rec.UserID, err)
	}
	rec.ItemIDs = normalizeIDs(rec.ItemIDs)
	return &rec, nil
}
