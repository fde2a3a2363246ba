package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/manthanjain6106/crawler-service/internal/model"
)

// TaskDB provides SQLite-based storage for crawl tasks and their results.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We store the full request and result as JSON documents
// alongside a few indexed columns rather than normalizing every page field
// into its own table. Results are read back whole, so a document column
// keeps the schema stable as the result type grows; the pages table exists
// only for cross-task queries on individual URLs.
type TaskDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures TaskDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a TaskDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*TaskDB, error) {
	dbPath := filepath.Join(dbDir, "crawlerd.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection avoids
	// SQLITE_BUSY under concurrent task updates.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	tdb := &TaskDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := tdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return tdb, nil
}

// Close closes the database connection.
func (tdb *TaskDB) Close() error {
	return tdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (tdb *TaskDB) createTables() error {
	schema := `
	-- Tasks store one row per crawl task with request and result documents
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		request_json TEXT NOT NULL,
		result_json TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_url ON tasks(url);
	CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);

	-- Pages store individual fetches for cross-task URL queries
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		url TEXT NOT NULL,
		status_code INTEGER,
		depth INTEGER,
		title TEXT,
		crawled_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(task_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_task ON pages(task_id);
	CREATE INDEX IF NOT EXISTS idx_pages_crawled ON pages(crawled_at);
	`

	_, err := tdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveTask inserts or updates a task row from the given task.
// The request document and status are always rewritten; the result
// document is rewritten when the task carries one.
func (tdb *TaskDB) SaveTask(ctx context.Context, task *model.CrawlTask) error {
	requestJSON, err := json.Marshal(task.Request)
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	var resultJSON sql.NullString
	if task.Result != nil {
		raw, err := json.Marshal(task.Result)
		if err != nil {
			return fmt.Errorf("failed to serialize result: %w", err)
		}
		resultJSON = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
	INSERT INTO tasks (task_id, url, status, request_json, result_json)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(task_id) DO UPDATE SET
		status = excluded.status,
		request_json = excluded.request_json,
		result_json = COALESCE(excluded.result_json, tasks.result_json),
		updated_at = CURRENT_TIMESTAMP
	`

	_, err = tdb.db.ExecContext(ctx, query,
		task.TaskID,
		task.Request.URL,
		string(task.Status),
		string(requestJSON),
		resultJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	return nil
}

// GetTask retrieves a task by its task ID. Returns nil when no such task
// exists.
func (tdb *TaskDB) GetTask(ctx context.Context, taskID string) (*model.CrawlTask, error) {
	query := `
	SELECT task_id, status, request_json, result_json, created_at, updated_at
	FROM tasks
	WHERE task_id = ?
	`

	var task model.CrawlTask
	var status, requestJSON string
	var resultJSON sql.NullString
	var createdAt, updatedAt string

	err := tdb.db.QueryRowContext(ctx, query, taskID).Scan(
		&task.TaskID,
		&status,
		&requestJSON,
		&resultJSON,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	task.Status = model.CrawlStatus(status)
	task.CreatedAt = parseTimestamp(createdAt)
	task.UpdatedAt = parseTimestamp(updatedAt)

	if err := json.Unmarshal([]byte(requestJSON), &task.Request); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	if resultJSON.Valid && resultJSON.String != "" {
		task.Result = &model.CrawlResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), task.Result); err != nil {
			return nil, fmt.Errorf("failed to parse result: %w", err)
		}
	}

	return &task, nil
}

// UpdateTaskStatus updates a task's lifecycle state.
func (tdb *TaskDB) UpdateTaskStatus(ctx context.Context, taskID string, status model.CrawlStatus) error {
	query := `
	UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP
	WHERE task_id = ?
	`

	result, err := tdb.db.ExecContext(ctx, query, string(status), taskID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no task with ID %s", taskID)
	}

	return nil
}

// SaveResult stores a finished crawl result on its task and records the
// individual pages for cross-task queries. The task's status is set from
// the result.
func (tdb *TaskDB) SaveResult(ctx context.Context, result *model.CrawlResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	query := `
	UPDATE tasks SET status = ?, result_json = ?, updated_at = CURRENT_TIMESTAMP
	WHERE task_id = ?
	`

	res, err := tdb.db.ExecContext(ctx, query, string(result.Status), string(resultJSON), result.TaskID)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no task with ID %s", result.TaskID)
	}

	pageQuery := `
	INSERT INTO pages (task_id, url, status_code, depth, title, crawled_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(task_id, url) DO UPDATE SET
		status_code = excluded.status_code,
		depth = excluded.depth,
		title = excluded.title,
		crawled_at = excluded.crawled_at
	`

	for _, page := range result.Pages {
		_, err := tdb.db.ExecContext(ctx, pageQuery,
			result.TaskID,
			page.URL,
			page.StatusCode,
			page.Depth,
			page.Title,
			page.CrawledAt.UTC().Format("2006-01-02 15:04:05"),
		)
		if err != nil {
			return fmt.Errorf("failed to save page record: %w", err)
		}
	}

	return nil
}

// GetResult retrieves the stored result of a task. Returns nil when the
// task does not exist or has no result yet.
func (tdb *TaskDB) GetResult(ctx context.Context, taskID string) (*model.CrawlResult, error) {
	query := `
	SELECT result_json FROM tasks
	WHERE task_id = ?
	`

	var resultJSON sql.NullString
	err := tdb.db.QueryRowContext(ctx, query, taskID).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	if !resultJSON.Valid || resultJSON.String == "" {
		return nil, nil
	}

	var result model.CrawlResult
	if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}

	return &result, nil
}

// TaskMetadata contains summary information about a stored task.
// This is used for listing tasks without loading full result documents.
type TaskMetadata struct {
	// TaskID is the unique task identifier.
	TaskID string

	// URL is the seed URL of the task's request.
	URL string

	// Status is the task's lifecycle state.
	Status model.CrawlStatus

	// CreatedAt is when the task was created.
	CreatedAt time.Time

	// UpdatedAt is when the task last changed state.
	UpdatedAt time.Time
}

// ListTasks returns task metadata, newest first, optionally filtered by
// status. A zero limit means no limit.
func (tdb *TaskDB) ListTasks(ctx context.Context, status model.CrawlStatus, limit int) ([]TaskMetadata, error) {
	query := `
	SELECT task_id, url, status, created_at, updated_at
	FROM tasks
	WHERE 1=1
	`
	args := make([]any, 0)

	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY created_at DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := tdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var results []TaskMetadata
	for rows.Next() {
		var meta TaskMetadata
		var statusStr, createdAt, updatedAt string

		if err := rows.Scan(&meta.TaskID, &meta.URL, &statusStr, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task metadata: %w", err)
		}

		meta.Status = model.CrawlStatus(statusStr)
		meta.CreatedAt = parseTimestamp(createdAt)
		meta.UpdatedAt = parseTimestamp(updatedAt)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// DeleteTask removes a task and its page records.
func (tdb *TaskDB) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := tdb.db.ExecContext(ctx, "DELETE FROM pages WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("failed to delete page records: %w", err)
	}

	result, err := tdb.db.ExecContext(ctx, "DELETE FROM tasks WHERE task_id = ?", taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no task with ID %s", taskID)
	}

	return nil
}

// HasRecentCrawl checks if a URL was fetched by any task within the
// specified duration.
func (tdb *TaskDB) HasRecentCrawl(ctx context.Context, url string, duration time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM pages
	WHERE url = ? AND crawled_at > datetime('now', ?)
	`

	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	err := tdb.db.QueryRowContext(ctx, query, url, modifier).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent crawl: %w", err)
	}

	return count > 0, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
