package survey

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/liamcoop/surveylogic/rules"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect is the SQL flavour spoken by a SQLStore
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// DriverName is the database/sql driver registered for the dialect
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// Rebind rewrites ? placeholders into the dialect's form
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tenants (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS surveys (
	tenant_id  TEXT NOT NULL,
	id         TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (tenant_id, id)
);
CREATE TABLE IF NOT EXISTS questions (
	tenant_id     TEXT NOT NULL,
	survey_id     TEXT NOT NULL,
	id            TEXT NOT NULL,
	code          TEXT NOT NULL,
	position      INTEGER NOT NULL,
	text          TEXT NOT NULL DEFAULT '',
	display_logic TEXT,
	PRIMARY KEY (tenant_id, survey_id, id)
);
CREATE TABLE IF NOT EXISTS routing_rules (
	tenant_id          TEXT NOT NULL,
	survey_id          TEXT NOT NULL,
	id                 TEXT NOT NULL,
	name               TEXT NOT NULL DEFAULT '',
	source_question_id TEXT,
	target_question_id TEXT,
	condition          TEXT,
	action             TEXT NOT NULL,
	priority           INTEGER NOT NULL DEFAULT 0,
	is_active          BOOLEAN NOT NULL DEFAULT TRUE,
	seq                INTEGER NOT NULL,
	created_at         TIMESTAMP NOT NULL,
	updated_at         TIMESTAMP NOT NULL,
	PRIMARY KEY (tenant_id, survey_id, id)
);
CREATE TABLE IF NOT EXISTS derived_fields (
	tenant_id  TEXT NOT NULL,
	survey_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	expression TEXT NOT NULL,
	position   INTEGER NOT NULL,
	PRIMARY KEY (tenant_id, survey_id, name)
);
`

// SQLStore implements Store on database/sql for one tenant.
// PostgreSQL databases get their schema from the migrations; SQLite
// databases opened with NewSQLiteStore create it themselves.
type SQLStore struct {
	db       *sql.DB
	dialect  Dialect
	tenantID string
}

// NewSQLStore wraps an open database for a specific tenant
func NewSQLStore(db *sql.DB, dialect Dialect, tenantID string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, tenantID: tenantID}
}

// NewPostgresStore creates a PostgreSQL-backed Store for a specific tenant
func NewPostgresStore(db *sql.DB, tenantID string) *SQLStore {
	return NewSQLStore(db, Postgres, tenantID)
}

// OpenSQLite opens (creating if needed) a SQLite database and its tables
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(SQLite.DriverName(), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return db, nil
}

// NewSQLiteStore opens the SQLite database at path for a specific tenant
func NewSQLiteStore(path, tenantID string) (*SQLStore, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return NewSQLStore(db, SQLite, tenantID), nil
}

// DB exposes the underlying connection pool
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) q(query string) string { return s.dialect.Rebind(query) }

// SaveSurvey replaces the survey and all its children in one transaction
func (s *SQLStore) SaveSurvey(def *Definition) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	createdAt := now
	err = tx.QueryRow(s.q(`
		SELECT created_at FROM surveys WHERE tenant_id = ? AND id = ?
	`), s.tenantID, def.ID).Scan(&createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check survey existence: %w", err)
	}

	if _, err := tx.Exec(s.q(`
		INSERT INTO surveys (tenant_id, id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
	`), s.tenantID, def.ID, def.Name, createdAt, now); err != nil {
		return fmt.Errorf("failed to upsert survey: %w", err)
	}

	for _, table := range []string{"questions", "routing_rules", "derived_fields"} {
		if _, err := tx.Exec(s.q(`DELETE FROM `+table+` WHERE tenant_id = ? AND survey_id = ?`), s.tenantID, def.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, q := range def.Questions {
		logic, err := encodeCondition(q.DisplayLogic)
		if err != nil {
			return fmt.Errorf("question %s: %w", q.ID, err)
		}
		if _, err := tx.Exec(s.q(`
			INSERT INTO questions (tenant_id, survey_id, id, code, position, text, display_logic)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`), s.tenantID, def.ID, q.ID, q.Code, q.Order, q.Text, logic); err != nil {
			return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
		}
	}

	for i := range def.Rules {
		rule := def.Rules[i]
		stampRule(&rule, now)
		if err := s.insertRule(tx, def.ID, &rule, i); err != nil {
			return err
		}
	}

	for i, f := range def.DerivedFields {
		if _, err := tx.Exec(s.q(`
			INSERT INTO derived_fields (tenant_id, survey_id, name, expression, position)
			VALUES (?, ?, ?, ?, ?)
		`), s.tenantID, def.ID, f.Name, f.Expression, i); err != nil {
			return fmt.Errorf("failed to insert derived field %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit survey: %w", err)
	}
	def.CreatedAt, def.UpdatedAt = createdAt, now
	return nil
}

func (s *SQLStore) insertRule(tx *sql.Tx, surveyID string, rule *rules.RoutingRule, seq int) error {
	cond, err := encodeCondition(rule.Condition)
	if err != nil {
		return fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	_, err = tx.Exec(s.q(`
		INSERT INTO routing_rules (tenant_id, survey_id, id, name, source_question_id, target_question_id,
			condition, action, priority, is_active, seq, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), s.tenantID, surveyID, rule.ID, rule.Name, nullString(rule.SourceQuestionID), nullString(rule.TargetQuestionID),
		cond, string(rule.Action), rule.Priority, rule.IsActive, seq, rule.CreatedAt.UTC(), rule.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert rule %s: %w", rule.ID, err)
	}
	return nil
}

func (s *SQLStore) GetSurvey(id string) (*Definition, error) {
	def := &Definition{ID: id}
	err := s.db.QueryRow(s.q(`
		SELECT name, created_at, updated_at FROM surveys WHERE tenant_id = ? AND id = ?
	`), s.tenantID, id).Scan(&def.Name, &def.CreatedAt, &def.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("survey %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get survey: %w", err)
	}

	if def.Questions, err = s.questions(id); err != nil {
		return nil, err
	}
	if def.Rules, err = s.loadRules(id, ""); err != nil {
		return nil, err
	}
	if def.DerivedFields, err = s.derivedFields(id); err != nil {
		return nil, err
	}
	return def, nil
}

func (s *SQLStore) ListSurveys() ([]*Definition, error) {
	rows, err := s.db.Query(s.q(`SELECT id FROM surveys WHERE tenant_id = ? ORDER BY id`), s.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan survey id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating surveys: %w", err)
	}

	out := make([]*Definition, 0, len(ids))
	for _, id := range ids {
		def, err := s.GetSurvey(id)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

func (s *SQLStore) questions(surveyID string) ([]rules.Question, error) {
	rows, err := s.db.Query(s.q(`
		SELECT id, code, position, text, display_logic
		FROM questions
		WHERE tenant_id = ? AND survey_id = ?
		ORDER BY position, id
	`), s.tenantID, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := []rules.Question{}
	for rows.Next() {
		var q rules.Question
		var logic sql.NullString
		if err := rows.Scan(&q.ID, &q.Code, &q.Order, &q.Text, &logic); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if q.DisplayLogic, err = decodeCondition(logic); err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return questions, nil
}

// loadRules loads the rules of a survey in insertion order, or only ruleID when set
func (s *SQLStore) loadRules(surveyID, ruleID string) ([]rules.RoutingRule, error) {
	query := `
		SELECT id, name, source_question_id, target_question_id, condition, action, priority, is_active,
			created_at, updated_at
		FROM routing_rules
		WHERE tenant_id = ? AND survey_id = ?`
	args := []any{s.tenantID, surveyID}
	if ruleID != "" {
		query += ` AND id = ?`
		args = append(args, ruleID)
	}
	query += ` ORDER BY seq, id`

	rows, err := s.db.Query(s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	list := []rules.RoutingRule{}
	for rows.Next() {
		var r rules.RoutingRule
		var source, target, cond sql.NullString
		var action string
		if err := rows.Scan(&r.ID, &r.Name, &source, &target, &cond, &action, &r.Priority, &r.IsActive,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.SourceQuestionID = source.String
		r.TargetQuestionID = target.String
		r.Action = rules.Action(action)
		if r.Condition, err = decodeCondition(cond); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return list, nil
}

func (s *SQLStore) derivedFields(surveyID string) ([]DerivedField, error) {
	rows, err := s.db.Query(s.q(`
		SELECT name, expression FROM derived_fields
		WHERE tenant_id = ? AND survey_id = ?
		ORDER BY position
	`), s.tenantID, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list derived fields: %w", err)
	}
	defer rows.Close()

	var fields []DerivedField
	for rows.Next() {
		var f DerivedField
		if err := rows.Scan(&f.Name, &f.Expression); err != nil {
			return nil, fmt.Errorf("failed to scan derived field: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating derived fields: %w", err)
	}
	return fields, nil
}

func (s *SQLStore) surveyExists(surveyID string) error {
	var exists bool
	err := s.db.QueryRow(s.q(`
		SELECT EXISTS(SELECT 1 FROM surveys WHERE tenant_id = ? AND id = ?)
	`), s.tenantID, surveyID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check survey existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("survey %s: %w", surveyID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) AddRule(surveyID string, rule *rules.RoutingRule) error {
	if err := s.surveyExists(surveyID); err != nil {
		return err
	}
	if _, err := s.GetRule(surveyID, rule.ID); err == nil {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRow(s.q(`
		SELECT COALESCE(MAX(seq), -1) + 1 FROM routing_rules WHERE tenant_id = ? AND survey_id = ?
	`), s.tenantID, surveyID).Scan(&seq); err != nil {
		return fmt.Errorf("failed to allocate rule position: %w", err)
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := s.insertRule(tx, surveyID, rule, seq); err != nil {
		return err
	}
	if err := s.touch(tx, surveyID, now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) GetRule(surveyID, ruleID string) (*rules.RoutingRule, error) {
	list, err := s.loadRules(surveyID, ruleID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	return &list[0], nil
}

func (s *SQLStore) UpdateRule(surveyID string, rule *rules.RoutingRule) error {
	existing, err := s.GetRule(surveyID, rule.ID)
	if err != nil {
		return err
	}
	cond, err := encodeCondition(rule.Condition)
	if err != nil {
		return fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()
	result, err := tx.Exec(s.q(`
		UPDATE routing_rules
		SET name = ?, source_question_id = ?, target_question_id = ?, condition = ?, action = ?,
			priority = ?, is_active = ?, updated_at = ?
		WHERE tenant_id = ? AND survey_id = ? AND id = ?
	`), rule.Name, nullString(rule.SourceQuestionID), nullString(rule.TargetQuestionID), cond, string(rule.Action),
		rule.Priority, rule.IsActive, rule.UpdatedAt, s.tenantID, surveyID, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if err := expectOneRow(result, "rule "+rule.ID); err != nil {
		return err
	}
	if err := s.touch(tx, surveyID, rule.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) DeleteRule(surveyID, ruleID string) error {
	result, err := s.db.Exec(s.q(`
		DELETE FROM routing_rules WHERE tenant_id = ? AND survey_id = ? AND id = ?
	`), s.tenantID, surveyID, ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return expectOneRow(result, "rule "+ruleID)
}

func (s *SQLStore) touch(tx *sql.Tx, surveyID string, now time.Time) error {
	if _, err := tx.Exec(s.q(`
		UPDATE surveys SET updated_at = ? WHERE tenant_id = ? AND id = ?
	`), now, s.tenantID, surveyID); err != nil {
		return fmt.Errorf("failed to touch survey: %w", err)
	}
	return nil
}

func expectOneRow(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func encodeCondition(c *rules.Condition) (sql.NullString, error) {
	if c == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode condition: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeCondition(raw sql.NullString) (*rules.Condition, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var c rules.Condition
	if err := json.Unmarshal([]byte(raw.String), &c); err != nil {
		return nil, fmt.Errorf("failed to decode condition: %w", err)
	}
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
