package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite selects the embedded modernc SQLite driver.
	DriverSQLite = "sqlite"
	// DriverPostgres selects lib/pq.
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store is the relational store behind the grading service. A Store returned
// by InTx is bound to a transaction and must not outlive the callback.
type Store struct {
	db      *sqlx.DB
	q       sqlx.ExtContext
	dialect string
}

// New opens the database and applies the schema.
func New(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection serializes writers and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, q: db, dialect: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn against a transaction-bound copy of the store. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if _, ok := s.q.(*sqlx.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

func (s *Store) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.q.Rebind(query), args...)
}

// insert runs an INSERT and returns the generated id.
func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := s.get(ctx, &id, query+" RETURNING id", args...)
	return id, err
}

func (s *Store) migrate() error {
	r := strings.NewReplacer(dialectTokens[s.dialect]...)
	_, err := s.db.Exec(r.Replace(schema))
	return err
}

var dialectTokens = map[string][]string{
	DriverSQLite:   {"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{ts}}", "DATETIME", "{{real}}", "REAL"},
	DriverPostgres: {"{{pk}}", "BIGSERIAL PRIMARY KEY", "{{ts}}", "TIMESTAMPTZ", "{{real}}", "DOUBLE PRECISION"},
}

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		school_id BIGINT NOT NULL DEFAULT 1,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{ts}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		created_at {{ts}} NOT NULL,
		expires_at {{ts}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS academic_years (
		id {{pk}},
		school_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		is_current BOOLEAN NOT NULL DEFAULT FALSE,
		start_date {{ts}} NOT NULL,
		end_date {{ts}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS academic_periods (
		id {{pk}},
		academic_year_id BIGINT NOT NULL REFERENCES academic_years(id),
		name TEXT NOT NULL,
		start_date {{ts}} NOT NULL,
		end_date {{ts}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subjects (
		id {{pk}},
		school_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		UNIQUE (school_id, name)
	);

	CREATE TABLE IF NOT EXISTS class_subjects (
		id {{pk}},
		class_name TEXT NOT NULL,
		subject_id BIGINT NOT NULL REFERENCES subjects(id),
		teacher_id BIGINT NOT NULL REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id {{pk}},
		subject_id BIGINT NOT NULL REFERENCES subjects(id),
		type TEXT NOT NULL,
		question_text TEXT NOT NULL,
		options TEXT,
		correct_answer TEXT,
		marks {{real}} NOT NULL,
		created_by_id BIGINT NOT NULL,
		created_at {{ts}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assignments (
		id {{pk}},
		class_subject_id BIGINT NOT NULL REFERENCES class_subjects(id),
		academic_period_id BIGINT NOT NULL REFERENCES academic_periods(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		total_marks {{real}} NOT NULL DEFAULT 0,
		due_date {{ts}},
		duration INTEGER,
		is_online BOOLEAN NOT NULL DEFAULT FALSE,
		is_published BOOLEAN NOT NULL DEFAULT FALSE,
		created_by_id BIGINT NOT NULL REFERENCES users(id),
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assignment_questions (
		id {{pk}},
		assignment_id BIGINT NOT NULL REFERENCES assignments(id),
		question_id BIGINT NOT NULL REFERENCES questions(id),
		position INTEGER NOT NULL,
		UNIQUE (assignment_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS assignment_submissions (
		id {{pk}},
		assignment_id BIGINT NOT NULL REFERENCES assignments(id),
		student_id BIGINT NOT NULL REFERENCES users(id),
		submitted_at {{ts}} NOT NULL,
		is_late BOOLEAN NOT NULL DEFAULT FALSE,
		is_graded BOOLEAN NOT NULL DEFAULT FALSE,
		total_score {{real}} NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 0,
		UNIQUE (assignment_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS question_responses (
		id {{pk}},
		submission_id BIGINT NOT NULL REFERENCES assignment_submissions(id),
		question_id BIGINT NOT NULL REFERENCES questions(id),
		student_answer TEXT,
		is_correct BOOLEAN,
		teacher_score {{real}},
		feedback TEXT,
		UNIQUE (submission_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS exam_results (
		id {{pk}},
		student_id BIGINT NOT NULL REFERENCES users(id),
		class_subject_id BIGINT NOT NULL REFERENCES class_subjects(id),
		academic_period_id BIGINT NOT NULL REFERENCES academic_periods(id),
		exam_type TEXT NOT NULL,
		score {{real}} NOT NULL,
		max_score {{real}} NOT NULL,
		grade TEXT NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (student_id, class_subject_id, academic_period_id, exam_type)
	);
	`
