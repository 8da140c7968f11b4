package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"newswatch/internal/model"
	"newswatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// exampleListCap bounds the stored positive/false-positive snapshot lists;
// the oldest snapshots are dropped on append once the cap is reached. The
// classifier's prompt window is much smaller and unaffected by this cap.
const exampleListCap = 200

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateTask inserts a new task and populates its ID and CreatedAt.
func (s *SQLite) CreateTask(ctx context.Context, task *model.Task) error {
	now := time.Now().UTC().Format(timeLayout)
	positives, err := marshalSnapshots(task.Positives)
	if err != nil {
		return err
	}
	falsePositives, err := marshalSnapshots(task.FalsePositives)
	if err != nil {
		return err
	}
	var endDate *string
	if task.EndDate != nil {
		v := task.EndDate.UTC().Format(timeLayout)
		endDate = &v
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (title, description, link, is_active, end_date, positives, false_positives, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.Title, task.Description, task.Link, boolToInt(task.IsActive), endDate, positives, falsePositives, now,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetTask returns a single task by its ID.
func (s *SQLite) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, link, is_active, end_date, positives, false_positives, created_at
		 FROM tasks WHERE id = ?`, id,
	)
	return scanTask(row)
}

// ListActiveTasks returns tasks that are active now: is_active set and the
// end date either absent (perpetually active) or still in the future.
func (s *SQLite) ListActiveTasks(ctx context.Context) ([]model.Task, error) {
	now := time.Now().UTC().Format(timeLayout)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, link, is_active, end_date, positives, false_positives, created_at
		 FROM tasks
		 WHERE is_active = 1 AND (end_date IS NULL OR end_date > ?)
		 ORDER BY id`, now,
	)
	if err != nil {
		return nil, fmt.Errorf("query active tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// AppendPositive adds the item snapshot to the task's positives list.
func (s *SQLite) AppendPositive(ctx context.Context, taskID int64, item model.NewsItem) error {
	return s.appendExample(ctx, taskID, item, "positives")
}

// AppendFalsePositive adds the item snapshot to the task's false_positives
// list.
func (s *SQLite) AppendFalsePositive(ctx context.Context, taskID int64, item model.NewsItem) error {
	return s.appendExample(ctx, taskID, item, "false_positives")
}

// appendExample re-reads the current list and writes the merged one inside
// a single transaction, so concurrent appenders are serialized instead of
// overwriting each other.
func (s *SQLite) appendExample(ctx context.Context, taskID int64, item model.NewsItem, column string) error {
	if column != "positives" && column != "false_positives" {
		return fmt.Errorf("invalid example column %q", column)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT `+column+` FROM tasks WHERE id = ?`, taskID,
	).Scan(&raw)
	if err != nil {
		return fmt.Errorf("read %s: %w", column, err)
	}

	items, err := unmarshalSnapshots(raw)
	if err != nil {
		return err
	}
	items = append(items, item)
	if len(items) > exampleListCap {
		items = items[len(items)-exampleListCap:]
	}

	merged, err := marshalSnapshots(items)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET `+column+` = ? WHERE id = ?`, merged, taskID,
	); err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	return tx.Commit()
}

// CreateCryptoTask inserts a new crypto task and populates its ID.
func (s *SQLite) CreateCryptoTask(ctx context.Context, task *model.CryptoTask) error {
	now := time.Now().UTC().Format(timeLayout)
	var endDate *string
	if task.EndDate != nil {
		v := task.EndDate.UTC().Format(timeLayout)
		endDate = &v
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO crypto_tasks (title, description, is_active, end_date, ticker, start_point, end_point, measurement_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.Title, task.Description, boolToInt(task.IsActive), endDate, task.Ticker,
		task.StartPoint, task.EndPoint, task.MeasurementTime.UTC().Format(timeLayout), now,
	)
	if err != nil {
		return fmt.Errorf("insert crypto task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListActiveCryptoTasks returns crypto tasks still being measured.
func (s *SQLite) ListActiveCryptoTasks(ctx context.Context) ([]model.CryptoTask, error) {
	now := time.Now().UTC().Format(timeLayout)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, is_active, end_date, ticker, start_point, end_point, measurement_time, created_at
		 FROM crypto_tasks
		 WHERE is_active = 1 AND (end_date IS NULL OR end_date > ?)
		 ORDER BY id`, now,
	)
	if err != nil {
		return nil, fmt.Errorf("query active crypto tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []model.CryptoTask
	for rows.Next() {
		var (
			t                   model.CryptoTask
			isActive            int
			endDate             sql.NullString
			measuredAt, created string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &isActive, &endDate,
			&t.Ticker, &t.StartPoint, &t.EndPoint, &measuredAt, &created); err != nil {
			return nil, fmt.Errorf("scan crypto task: %w", err)
		}
		t.IsActive = isActive == 1
		if endDate.Valid {
			v, _ := time.Parse(timeLayout, endDate.String)
			t.EndDate = &v
		}
		t.MeasurementTime, _ = time.Parse(timeLayout, measuredAt)
		t.CreatedAt, _ = time.Parse(timeLayout, created)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateNews inserts the item unless its link is already known, making the
// intake idempotent. Items without a link are always inserted.
func (s *SQLite) CreateNews(ctx context.Context, item *model.NewsItem) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO news (title, description, link, pub_date, source_name, processed)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		item.Title, item.Description, nullableString(item.Link),
		item.PubDate.UTC().Format(timeLayout), item.SourceName,
	)
	if err != nil {
		return false, fmt.Errorf("insert news: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	item.ID = id
	return true, nil
}

// GetNews returns a single news item by its ID.
func (s *SQLite) GetNews(ctx context.Context, id int64) (*model.NewsItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, link, pub_date, source_name FROM news WHERE id = ?`, id,
	)
	return scanNews(row)
}

// ListUnprocessedNews returns unprocessed items in ascending publication
// order, so downstream notifications go out chronologically.
func (s *SQLite) ListUnprocessedNews(ctx context.Context) ([]model.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, link, pub_date, source_name
		 FROM news WHERE processed = 0 ORDER BY pub_date`,
	)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed news: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.NewsItem
	for rows.Next() {
		item, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// MarkProcessed flags the item as fully processed. Calling it again is a
// no-op.
func (s *SQLite) MarkProcessed(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE news SET processed = 1 WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// GetOrCreatePrompt returns the singleton prompt config, creating it with
// the default prompts on first access.
func (s *SQLite) GetOrCreatePrompt(ctx context.Context) (*model.PromptConfig, error) {
	prompt, err := s.getPrompt(ctx)
	if err == nil {
		return prompt, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	examples, err := json.Marshal([]string{})
	if err != nil {
		return nil, fmt.Errorf("marshal post examples: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (role, crypto_role, suggest_post, post_examples) VALUES (?, ?, ?, ?)`,
		model.DefaultRolePrompt, model.DefaultCryptoRolePrompt, model.DefaultSuggestPostPrompt, string(examples),
	); err != nil {
		return nil, fmt.Errorf("insert prompt: %w", err)
	}
	return s.getPrompt(ctx)
}

func (s *SQLite) getPrompt(ctx context.Context) (*model.PromptConfig, error) {
	var (
		p   model.PromptConfig
		raw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, role, crypto_role, suggest_post, post_examples FROM prompts ORDER BY id LIMIT 1`,
	).Scan(&p.ID, &p.Role, &p.CryptoRole, &p.SuggestPost, &raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &p.PostExamples); err != nil {
		return nil, fmt.Errorf("unmarshal post examples: %w", err)
	}
	return &p, nil
}

// AddSubscriber registers a Telegram user. Re-subscribing is a no-op.
func (s *SQLite) AddSubscriber(ctx context.Context, sub model.Subscriber) error {
	now := time.Now().UTC().Format(timeLayout)
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscribers (tg_id, chat_id, created_at) VALUES (?, ?, ?)`,
		sub.TgID, sub.ChatID, now,
	); err != nil {
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

// RemoveSubscriber deletes a subscriber, reporting whether one existed.
func (s *SQLite) RemoveSubscriber(ctx context.Context, tgID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE tg_id = ?`, tgID)
	if err != nil {
		return false, fmt.Errorf("delete subscriber: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListSubscriberChatIDs returns every chat that receives notifications.
func (s *SQLite) ListSubscriberChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddSource registers a feed source; the name must be unique.
func (s *SQLite) AddSource(ctx context.Context, src *model.Source) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (name, url, kind, created_at) VALUES (?, ?, ?, ?)`,
		src.Name, src.URL, string(src.Kind), now,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	src.ID = id
	src.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListSources returns all configured feed sources.
func (s *SQLite) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, url, kind, created_at FROM sources ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []model.Source
	for rows.Next() {
		var (
			src     model.Source
			kind    string
			created string
		)
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &kind, &created); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.Kind = model.SourceKind(kind)
		src.CreatedAt, _ = time.Parse(timeLayout, created)
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source by name.
func (s *SQLite) DeleteSource(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalSnapshots(items []model.NewsItem) (string, error) {
	if items == nil {
		items = []model.NewsItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal snapshots: %w", err)
	}
	return string(data), nil
}

func unmarshalSnapshots(raw string) ([]model.NewsItem, error) {
	var items []model.NewsItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("unmarshal snapshots: %w", err)
	}
	return items, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (*model.Task, error) {
	var (
		t              model.Task
		isActive       int
		endDate        sql.NullString
		positives      string
		falsePositives string
		created        string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Link, &isActive, &endDate, &positives, &falsePositives, &created)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.IsActive = isActive == 1
	if endDate.Valid {
		v, _ := time.Parse(timeLayout, endDate.String)
		t.EndDate = &v
	}
	if t.Positives, err = unmarshalSnapshots(positives); err != nil {
		return nil, err
	}
	if t.FalsePositives, err = unmarshalSnapshots(falsePositives); err != nil {
		return nil, err
	}
	t.CreatedAt, _ = time.Parse(timeLayout, created)
	return &t, nil
}

func scanNews(row scannable) (*model.NewsItem, error) {
	var (
		item    model.NewsItem
		link    sql.NullString
		pubDate string
	)
	err := row.Scan(&item.ID, &item.Title, &item.Description, &link, &pubDate, &item.SourceName)
	if err != nil {
		return nil, fmt.Errorf("scan news: %w", err)
	}
	if link.Valid {
		item.Link = link.String
	}
	item.PubDate, _ = time.Parse(timeLayout, pubDate)
	return &item, nil
}
