// Package sqlite reads analysis records from a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/flightrisk/internal/adapters/source"
	"github.com/okian/flightrisk/internal/domain/model"
)

var openDB = sql.Open

const schema = `
	CREATE TABLE IF NOT EXISTS people (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL DEFAULT '',
		hire_date         TEXT,
		organization_unit TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id            TEXT PRIMARY KEY,
		person_id     TEXT NOT NULL,
		evaluated_at  TEXT NOT NULL,
		overall_score REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_person ON evaluations(person_id);

	CREATE TABLE IF NOT EXISTS attendance (
		id          TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date        TEXT NOT NULL,
		status      TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_employee ON attendance(employee_id);
`

// Store is a read-mostly view over the records database.
type Store struct {
	db *sql.DB
}

// Open opens the database at path.
func Open(path string) (*Store, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the record tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: ensure schema: %w", err)
	}
	return nil
}

// Load reads every person, evaluation and attendance record.
func (s *Store) Load(ctx context.Context) (model.Dataset, error) {
	var (
		data model.Dataset
		err  error
	)
	if data.People, err = s.people(ctx); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", source.ErrLoad, err)
	}
	if data.Evaluations, err = s.evaluations(ctx); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", source.ErrLoad, err)
	}
	if data.Attendance, err = s.attendance(ctx); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", source.ErrLoad, err)
	}
	return data, nil
}

func (s *Store) people(ctx context.Context) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, hire_date, organization_unit FROM people ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	var results []model.Person
	for rows.Next() {
		var (
			p    model.Person
			hire sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &hire, &p.OrganizationUnit); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		if p.HireDate, err = source.ParseOptionalTime(hire.String); err != nil {
			return nil, fmt.Errorf("person %s hire_date: %w", p.ID, err)
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (s *Store) evaluations(ctx context.Context) ([]model.EvaluationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, person_id, evaluated_at, overall_score FROM evaluations ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var results []model.EvaluationRecord
	for rows.Next() {
		var (
			r  model.EvaluationRecord
			at string
		)
		if err := rows.Scan(&r.ID, &r.PersonID, &at, &r.OverallScore); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		if r.EvaluatedAt, err = source.ParseTime(at); err != nil {
			return nil, fmt.Errorf("evaluation %s evaluated_at: %w", r.ID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) attendance(ctx context.Context) ([]model.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, employee_id, date, status FROM attendance ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var results []model.AttendanceRecord
	for rows.Next() {
		var (
			r      model.AttendanceRecord
			date   string
			status string
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &date, &status); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		if r.Date, err = source.ParseTime(date); err != nil {
			return nil, fmt.Errorf("attendance %s date: %w", r.ID, err)
		}
		r.Status = model.AttendanceStatus(status)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Insert writes data in one transaction. It seeds demo and test databases;
// the engine itself never writes.
func (s *Store) Insert(ctx context.Context, data model.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range data.People {
		var hire any
		if p.HireDate != nil {
			hire = p.HireDate.UTC().Format(time.RFC3339)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO people (id, name, hire_date, organization_unit) VALUES (?, ?, ?, ?)`,
			p.ID, p.Name, hire, p.OrganizationUnit,
		); err != nil {
			return fmt.Errorf("sqlite: insert person %s: %w", p.ID, err)
		}
	}
	for _, r := range data.Evaluations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO evaluations (id, person_id, evaluated_at, overall_score) VALUES (?, ?, ?, ?)`,
			r.ID, r.PersonID, r.EvaluatedAt.UTC().Format(time.RFC3339), r.OverallScore,
		); err != nil {
			return fmt.Errorf("sqlite: insert evaluation %s: %w", r.ID, err)
		}
	}
	for _, r := range data.Attendance {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attendance (id, employee_id, date, status) VALUES (?, ?, ?, ?)`,
			r.ID, r.EmployeeID, r.Date.UTC().Format(time.DateOnly), string(r.Status),
		); err != nil {
			return fmt.Errorf("sqlite: insert attendance %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}
