package store

import (
	"context"
	"fmt"
	"strings"
)

// ResponsePair is a statement from the corpus together with the statement
// that follows it in the same conversation.
type ResponsePair struct {
	StatementID int64
	Statement   string
	// SearchText is the lower-cased statement used for matching.
	SearchText string
	Response   string
	Category   string
}

// InsertConversation stores lines as one conversation chain and returns the
// conversation number assigned to it. Blank lines are rejected.
func (s *Store) InsertConversation(ctx context.Context, category string, lines []string) (int64, error) {
	if len(lines) == 0 {
		return 0, fmt.Errorf("insert conversation: no statements")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: begin: %w", err)
	}
	defer tx.Rollback()

	var conv int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(conversation), 0) + 1 FROM statements`).Scan(&conv); err != nil {
		return 0, fmt.Errorf("insert conversation: next id: %w", err)
	}

	for i, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" {
			return 0, fmt.Errorf("insert conversation: statement %d is blank", i)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO statements (conversation, position, text, search_text, category)
			VALUES (?, ?, ?, ?, ?)
		`, conv, i, text, strings.ToLower(text), category)
		if err != nil {
			return 0, fmt.Errorf("insert conversation: statement %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert conversation: commit: %w", err)
	}
	return conv, nil
}

// ResponsePairs returns every statement that has a known response, in
// insertion order.
func (s *Store) ResponsePairs(ctx context.Context) ([]ResponsePair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.text, s.search_text, r.text, s.category
		FROM statements s
		JOIN statements r
		  ON r.conversation = s.conversation AND r.position = s.position + 1
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list response pairs: %w", err)
	}
	defer rows.Close()

	var pairs []ResponsePair
	for rows.Next() {
		var p ResponsePair
		if err := rows.Scan(&p.StatementID, &p.Statement, &p.SearchText, &p.Response, &p.Category); err != nil {
			return nil, fmt.Errorf("failed to scan response pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// Conversations returns every stored conversation as its ordered statements.
func (s *Store) Conversations(ctx context.Context) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation, text FROM statements ORDER BY conversation, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var (
		out  [][]string
		last int64 = -1
	)
	for rows.Next() {
		var (
			conv int64
			text string
		)
		if err := rows.Scan(&conv, &text); err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		if conv != last {
			out = append(out, nil)
			last = conv
		}
		out[len(out)-1] = append(out[len(out)-1], text)
	}
	return out, rows.Err()
}

// CountStatements returns the number of stored statements.
func (s *Store) CountStatements(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count statements: %w", err)
	}
	return n, nil
}
