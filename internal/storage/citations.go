package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nuclight.org/citebot/internal/citation"
)

const citationColumns = `n, who, what, what_spans, comment, likes, source`

// CitationRepository is the row store. Row numbers come from the table's
// AUTOINCREMENT sequence and are never handed out twice.
type CitationRepository struct {
	db *DB
}

func NewCitationRepository(db *DB) *CitationRepository {
	return &CitationRepository{db: db}
}

func (r *CitationRepository) Append(ctx context.Context, c *citation.Citation) error {
	spans, err := marshalSpans(c.Spans)
	if err != nil {
		return err
	}
	likes, err := citation.MarshalLikes(c.Likes)
	if err != nil {
		return err
	}
	source, err := citation.MarshalSource(c.Source)
	if err != nil {
		return err
	}

	result, err := r.db.db.ExecContext(ctx, `
		INSERT INTO citations (who, what, what_spans, comment, likes, source)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.Who, c.What, spans, c.Comment, likes, source)
	if err != nil {
		return fmt.Errorf("insert citation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	c.Row = int(id)
	return nil
}

// Get returns the citation at row, or nil if there is none.
func (r *CitationRepository) Get(ctx context.Context, row int) (*citation.Citation, error) {
	c, err := scanCitation(r.db.db.QueryRowContext(ctx, `
		SELECT `+citationColumns+` FROM citations WHERE n = ?
	`, row))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *CitationRepository) UpdateText(ctx context.Context, row int, who, what string, spans []citation.Span) error {
	encoded, err := marshalSpans(spans)
	if err != nil {
		return err
	}
	return r.update(ctx, row, "update text", `
		UPDATE citations SET who = ?, what = ?, what_spans = ? WHERE n = ?
	`, who, what, encoded, row)
}

func (r *CitationRepository) UpdateLikes(ctx context.Context, row int, likes citation.Likes) error {
	encoded, err := citation.MarshalLikes(likes)
	if err != nil {
		return err
	}
	return r.update(ctx, row, "update likes", `
		UPDATE citations SET likes = ? WHERE n = ?
	`, encoded, row)
}

func (r *CitationRepository) UpdateComment(ctx context.Context, row int, comment string) error {
	return r.update(ctx, row, "update comment", `
		UPDATE citations SET comment = ? WHERE n = ?
	`, comment, row)
}

func (r *CitationRepository) update(ctx context.Context, row int, op, query string, args ...any) error {
	result, err := r.db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s row %d: %w", op, row, citation.ErrNotFound)
	}
	return nil
}

// Sources reads the provenance column of every row. Rows whose source cannot
// be decoded (for example after a hand edit) are skipped.
func (r *CitationRepository) Sources(ctx context.Context) (map[int]*citation.Source, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT n, source FROM citations WHERE source != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	sources := make(map[int]*citation.Source)
	for rows.Next() {
		var n int
		var raw string
		if err := rows.Scan(&n, &raw); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src, err := citation.UnmarshalSource(raw)
		if err != nil || src == nil {
			continue
		}
		sources[n] = src
	}
	return sources, rows.Err()
}

// Random returns a uniformly chosen citation, or nil if the table is empty.
func (r *CitationRepository) Random(ctx context.Context) (*citation.Citation, error) {
	c, err := scanCitation(r.db.db.QueryRowContext(ctx, `
		SELECT `+citationColumns+` FROM citations ORDER BY RANDOM() LIMIT 1
	`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// Search matches query as a substring of the body or the author.
func (r *CitationRepository) Search(ctx context.Context, query string, limit int) ([]*citation.Citation, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT `+citationColumns+` FROM citations
		WHERE what LIKE ? ESCAPE '\' OR who LIKE ? ESCAPE '\'
		ORDER BY n
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search citations: %w", err)
	}
	defer rows.Close()

	var found []*citation.Citation
	for rows.Next() {
		c, err := scanCitation(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, c)
	}
	return found, rows.Err()
}

func (r *CitationRepository) Authors(ctx context.Context) ([]string, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT DISTINCT who FROM citations WHERE who != '' ORDER BY who
	`)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var who string
		if err := rows.Scan(&who); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		authors = append(authors, who)
	}
	return authors, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCitation(s scanner) (*citation.Citation, error) {
	var c citation.Citation
	var spans, likes, source string
	if err := s.Scan(&c.Row, &c.Who, &c.What, &spans, &c.Comment, &likes, &source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan citation: %w", err)
	}

	var err error
	if c.Spans, err = unmarshalSpans(spans); err != nil {
		return nil, err
	}
	if c.Likes, err = citation.UnmarshalLikes(likes); err != nil {
		return nil, err
	}
	// A damaged source only costs edit tracking; the citation stays readable.
	c.Source, _ = citation.UnmarshalSource(source)
	return &c, nil
}

func marshalSpans(spans []citation.Span) (string, error) {
	if len(spans) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(spans)
	if err != nil {
		return "", fmt.Errorf("marshal spans: %w", err)
	}
	return string(data), nil
}

func unmarshalSpans(s string) ([]citation.Span, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var spans []citation.Span
	if err := json.Unmarshal([]byte(s), &spans); err != nil {
		return nil, fmt.Errorf("unmarshal spans: %w", err)
	}
	if len(spans) == 0 {
		return nil, nil
	}
	return spans, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
