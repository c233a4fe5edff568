package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/internal/domain/types"
	"github.com/okian/versus/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	title           TEXT NOT NULL DEFAULT '',
	company         TEXT NOT NULL DEFAULT '',
	major           TEXT NOT NULL DEFAULT '',
	graduation_year INTEGER NOT NULL DEFAULT 0,
	is_student      INTEGER NOT NULL DEFAULT 0,
	location        TEXT NOT NULL DEFAULT '',
	linkedin_url    TEXT NOT NULL DEFAULT '',
	rating          REAL NOT NULL,
	enriched        INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS profiles_rating ON profiles (rating DESC, id);

CREATE TABLE IF NOT EXISTS votes (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	session_id   TEXT NOT NULL DEFAULT '',
	left_id      TEXT NOT NULL REFERENCES profiles (id),
	right_id     TEXT NOT NULL REFERENCES profiles (id),
	outcome      TEXT NOT NULL CHECK (outcome IN ('left', 'right', 'draw')),
	left_before  REAL NOT NULL,
	left_after   REAL NOT NULL,
	right_before REAL NOT NULL,
	right_after  REAL NOT NULL,
	created_at   INTEGER NOT NULL,
	CHECK (left_id <> right_id)
);
CREATE INDEX IF NOT EXISTS votes_session ON votes (session_id, seq DESC);
`

const profileColumns = `id, name, title, company, major, graduation_year, is_student,
	location, linkedin_url, rating, enriched, created_at, updated_at`

const voteColumns = `id, session_id, left_id, right_id, outcome,
	left_before, left_after, right_before, right_after, created_at`

// SQLStore persists profiles and votes in SQLite. The pool is limited to a
// single connection, so transactions never interleave.
type SQLStore struct {
	db   *sql.DB
	opts options
}

// OpenSQLStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLStore(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLStore{db: db, opts: applyOptions(opts)}, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (model.Profile, error) {
	var (
		p                  model.Profile
		student, enriched  int
		createdAt, updated int64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Title, &p.Company, &p.Major, &p.GraduationYear, &student,
		&p.Location, &p.LinkedInURL, &p.Rating, &enriched, &createdAt, &updated)
	if err != nil {
		return model.Profile{}, err
	}
	p.IsStudent = student != 0
	p.Enriched = enriched != 0
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return p, nil
}

func scanVote(row rowScanner) (model.AppliedVote, error) {
	var (
		av        model.AppliedVote
		outcome   string
		createdAt int64
	)
	err := row.Scan(&av.Vote.ID, &av.Vote.SessionID, &av.Vote.LeftID, &av.Vote.RightID, &outcome,
		&av.Left.Before, &av.Left.After, &av.Right.Before, &av.Right.After, &createdAt)
	if err != nil {
		return model.AppliedVote{}, err
	}
	av.Vote.Outcome = model.Outcome(outcome)
	av.Vote.CreatedAt = time.Unix(0, createdAt).UTC()
	av.Left.ProfileID = av.Vote.LeftID
	av.Right.ProfileID = av.Vote.RightID
	return av, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLStore) fail(op string, err error) error {
	metrics.RecordRepositoryError(op)
	return fmt.Errorf("%s: %w", op, err)
}

func (s *SQLStore) Get(ctx context.Context, id string) (model.Profile, error) {
	defer observeQuery(time.Now())
	return s.get(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) get(ctx context.Context, q querier, id string) (model.Profile, error) {
	row := q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Profile{}, s.fail("get", err)
	}
	return p, nil
}

func (s *SQLStore) List(ctx context.Context, q ListQuery) (Page, error) {
	defer observeQuery(time.Now())
	q = q.normalize(s.opts.maxPageSize)

	var (
		where []string
		args  []any
	)
	if query := strings.ToLower(strings.TrimSpace(q.Query)); query != "" {
		like := "%" + query + "%"
		where = append(where, `(lower(name) LIKE ? OR lower(title) LIKE ? OR lower(company) LIKE ? OR lower(major) LIKE ?)`)
		args = append(args, like, like, like, like)
	}
	switch filter := strings.ToLower(strings.TrimSpace(q.Filter)); filter {
	case FilterAll:
	case FilterStudents:
		where = append(where, `is_student = 1`)
	case FilterAlumni:
		where = append(where, `is_student = 0`)
	default:
		if major, ok := majorAliases[filter]; ok {
			filter = major
		}
		where = append(where, `lower(major) = ?`)
		args = append(args, filter)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`+clause, args...).Scan(&total); err != nil {
		return Page{}, s.fail("list", err)
	}

	start, ok := q.offset(total)
	if !ok {
		return Page{Profiles: []model.Profile{}, Total: total, Page: q.Page, TotalPages: totalPages(total, q.Limit)}, nil
	}

	order := `rating DESC, id ASC`
	switch q.Sort {
	case SortName:
		order = `lower(name) ASC, id ASC`
	case SortGraduation:
		order = `graduation_year ASC, id ASC`
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles`+clause+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, q.Limit, start)...)
	if err != nil {
		return Page{}, s.fail("list", err)
	}
	defer rows.Close()

	profiles := make([]model.Profile, 0, q.Limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return Page{}, s.fail("list", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return Page{}, s.fail("list", err)
	}
	return Page{Profiles: profiles, Total: total, Page: q.Page, TotalPages: totalPages(total, q.Limit)}, nil
}

func (s *SQLStore) Insert(ctx context.Context, p model.Profile) (model.Profile, error) {
	defer observeUpdate(time.Now())
	if err := validateProfile(p); err != nil {
		return model.Profile{}, err
	}
	now := s.opts.clock().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.Title, p.Company, p.Major, p.GraduationYear, boolInt(p.IsStudent),
		p.Location, p.LinkedInURL, p.Rating, boolInt(p.Enriched), p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano())
	if err != nil {
		return model.Profile{}, s.fail("insert", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		metrics.RecordRepositoryError("insert")
		return model.Profile{}, fmt.Errorf("%w: %s", ErrDuplicate, p.ID)
	}
	metrics.UpdateTotalProfiles(s.Count(ctx))
	return p, nil
}

func (s *SQLStore) InsertVote(ctx context.Context, v model.Vote, rate RateFunc) (applied model.AppliedVote, err error) {
	defer observeUpdate(time.Now())
	if err := v.Validate(); err != nil {
		return model.AppliedVote{}, err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.opts.clock()
	}
	v.CreatedAt = v.CreatedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.AppliedVote{}, s.fail("insert_vote", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	left, err := s.get(ctx, tx, v.LeftID)
	if err != nil {
		return model.AppliedVote{}, err
	}
	right, err := s.get(ctx, tx, v.RightID)
	if err != nil {
		return model.AppliedVote{}, err
	}
	newLeft, newRight, err := rate(left.Rating, right.Rating)
	if err != nil {
		return model.AppliedVote{}, err
	}

	at := v.CreatedAt.UnixNano()
	for _, upd := range []struct {
		id     string
		rating float64
	}{{left.ID, newLeft}, {right.ID, newRight}} {
		if _, err = tx.ExecContext(ctx, `UPDATE profiles SET rating = ?, updated_at = ? WHERE id = ?`,
			upd.rating, at, upd.id); err != nil {
			return model.AppliedVote{}, s.fail("insert_vote", err)
		}
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO votes (`+voteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		v.ID, v.SessionID, v.LeftID, v.RightID, string(v.Outcome),
		left.Rating, newLeft, right.Rating, newRight, at)
	if err != nil {
		return model.AppliedVote{}, s.fail("insert_vote", err)
	}
	if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
		err = fmt.Errorf("%w: vote %s", ErrDuplicate, v.ID)
		return model.AppliedVote{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.AppliedVote{}, s.fail("insert_vote", err)
	}

	return model.AppliedVote{
		Vote:  v,
		Left:  model.RatingChange{ProfileID: left.ID, Before: left.Rating, After: newLeft},
		Right: model.RatingChange{ProfileID: right.ID, Before: right.Rating, After: newRight},
	}, nil
}

func (s *SQLStore) RandomSample(ctx context.Context, excludeIDs []string, n int) ([]model.Profile, error) {
	defer observeQuery(time.Now())
	query := `SELECT ` + profileColumns + ` FROM profiles`
	args := make([]any, 0, len(excludeIDs)+1)
	if len(excludeIDs) > 0 {
		query += ` WHERE id NOT IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(excludeIDs)), ", ") + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	if n <= 0 {
		n = -1
	}
	query += ` ORDER BY RANDOM() LIMIT ?`
	args = append(args, n)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail("random_sample", err)
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, s.fail("random_sample", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("random_sample", err)
	}
	return out, nil
}

func (s *SQLStore) HasVote(ctx context.Context, id string) (bool, error) {
	defer observeQuery(time.Now())
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE id = ?`, id).Scan(&n); err != nil {
		return false, s.fail("has_vote", err)
	}
	return n > 0, nil
}

func (s *SQLStore) RecentVotes(ctx context.Context, sessionID string, limit int) ([]model.AppliedVote, error) {
	defer observeQuery(time.Now())
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE session_id = ? ORDER BY seq DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, s.fail("recent_votes", err)
	}
	defer rows.Close()

	out := make([]model.AppliedVote, 0, limit)
	for rows.Next() {
		av, err := scanVote(rows)
		if err != nil {
			return nil, s.fail("recent_votes", err)
		}
		out = append(out, av)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("recent_votes", err)
	}
	return out, nil
}

func (s *SQLStore) Enrich(ctx context.Context, id string, attrs model.Attributes) (p model.Profile, err error) {
	defer observeUpdate(time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Profile{}, s.fail("enrich", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	p, err = s.get(ctx, tx, id)
	if err != nil {
		return model.Profile{}, err
	}
	p = attrs.Apply(p)
	p.UpdatedAt = s.opts.clock().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE profiles
		SET name = ?, title = ?, company = ?, location = ?, enriched = 1, updated_at = ?
		WHERE id = ?`, p.Name, p.Title, p.Company, p.Location, p.UpdatedAt.UnixNano(), id); err != nil {
		return model.Profile{}, s.fail("enrich", err)
	}
	if err = tx.Commit(); err != nil {
		return model.Profile{}, s.fail("enrich", err)
	}
	return p, nil
}

func (s *SQLStore) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	defer observeQuery(time.Now())
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT RANK() OVER (ORDER BY rating DESC) AS rnk, id, name, rating
		FROM profiles ORDER BY rating DESC, id ASC LIMIT ?`, n)
	if err != nil {
		return nil, s.fail("top_n", err)
	}
	defer rows.Close()

	out := make([]types.Entry, 0, n)
	for rows.Next() {
		var e types.Entry
		if err := rows.Scan(&e.Rank, &e.ProfileID, &e.Name, &e.Rating); err != nil {
			return nil, s.fail("top_n", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("top_n", err)
	}
	return out, nil
}

func (s *SQLStore) Rank(ctx context.Context, id string) (types.Entry, error) {
	defer observeQuery(time.Now())
	p, err := s.get(ctx, s.db, id)
	if err != nil {
		return types.Entry{}, err
	}
	var above int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE rating > ?`, p.Rating).Scan(&above); err != nil {
		return types.Entry{}, s.fail("rank", err)
	}
	return types.Entry{Rank: above + 1, ProfileID: p.ID, Name: p.Name, Rating: p.Rating}, nil
}

func (s *SQLStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		metrics.RecordRepositoryError("count")
		return 0
	}
	return n
}
