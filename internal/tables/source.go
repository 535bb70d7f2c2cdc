// Package tables loads the sightings and population tables from CSV files,
// HTTP(S) URLs, or a SQLite database.
package tables

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLitePrefix selects a table of the configured SQLite database, as in
// "sqlite:population".
const SQLitePrefix = "sqlite:"

// Source yields a table as rows of text; the first row is the header.
type Source interface {
	Read(ctx context.Context) ([][]string, error)
	String() string
}

// NewSource picks a source for location: http(s) URLs are fetched, "sqlite:name"
// reads a table from db, anything else is a local file path.
func NewSource(location string, db *sql.DB, timeout time.Duration) (Source, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPSource(location, timeout), nil
	case strings.HasPrefix(location, SQLitePrefix):
		if db == nil {
			return nil, fmt.Errorf("source %q needs TABLES_SQLITE_PATH", location)
		}
		return NewSQLiteSource(db, strings.TrimPrefix(location, SQLitePrefix))
	case location == "":
		return nil, errors.New("empty table source")
	default:
		return FileSource{Path: location}, nil
	}
}

// FileSource reads a CSV file from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Read(_ context.Context) ([][]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()
	return readCSV(f)
}

func (s FileSource) String() string { return s.Path }

// HTTPSource fetches a CSV document with GET.
type HTTPSource struct {
	URL        string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewHTTPSource creates a source whose requests time out after timeout.
// Transport errors and 5xx responses are retried with doubling backoff.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		URL:        url,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   3,
		backoff:    200 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}
}

// errRetryable marks failures worth another attempt.
type errRetryable struct{ err error }

func (e errRetryable) Error() string { return e.err.Error() }
func (e errRetryable) Unwrap() error { return e.err }

func (s *HTTPSource) Read(ctx context.Context) ([][]string, error) {
	backoff := s.backoff
	var err error
	for attempt := 1; ; attempt++ {
		var rows [][]string
		rows, err = s.fetch(ctx)
		var retry errRetryable
		if err == nil || !errors.As(err, &retry) || attempt >= s.attempts {
			return rows, err
		}
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return nil, fmt.Errorf("fetch table: %w", ctx.Err())
		}
		backoff = sharedretry.NextBackoff(backoff, s.maxBackoff)
	}
}

func (s *HTTPSource) fetch(ctx context.Context) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errRetryable{fmt.Errorf("fetch table: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("fetch table: status %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, errRetryable{err}
		}
		return nil, err
	}
	return readCSV(resp.Body)
}

func (s *HTTPSource) String() string { return s.URL }

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource selects every row of one table, columns in declared order.
type SQLiteSource struct {
	db    *sql.DB
	table string
}

// NewSQLiteSource validates table as a plain identifier.
func NewSQLiteSource(db *sql.DB, table string) (*SQLiteSource, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid sqlite table name %q", table)
	}
	return &SQLiteSource{db: db, table: table}, nil
}

func (s *SQLiteSource) Read(ctx context.Context) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM "`+s.table+`"`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	out := [][]string{cols}

	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			rec[i] = v.String
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.table, err)
	}
	return out, nil
}

func (s *SQLiteSource) String() string { return SQLitePrefix + s.table }

// OpenSQLite opens the tables database read-only.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}
