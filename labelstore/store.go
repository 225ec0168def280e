// Package labelstore persists generated label sequences in SQLite.
package labelstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a sequence is not stored.
var ErrNotFound = errors.New("sequence not found")

// Sequence is one stored orthography with its labels.
type Sequence struct {
	Epoch   int64
	Index   int
	Orth    string
	Labels  []int
	Garbage [][]int
}

// Store wraps a SQLite database of label sequences.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates or opens the database at path.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, log: log}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS class_labels (
    class_idx INTEGER PRIMARY KEY,
    label TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sequences (
    epoch INTEGER NOT NULL,
    seq_idx INTEGER NOT NULL,
    orth TEXT NOT NULL,
    labels TEXT NOT NULL,
    PRIMARY KEY (epoch, seq_idx)
);
CREATE TABLE IF NOT EXISTS garbage (
    epoch INTEGER NOT NULL,
    seq_idx INTEGER NOT NULL,
    k INTEGER NOT NULL,
    labels TEXT NOT NULL,
    PRIMARY KEY (epoch, seq_idx, k)
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutClassLabels replaces the class label table.
func (s *Store) PutClassLabels(ctx context.Context, labels []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM class_labels`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO class_labels (class_idx, label) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, l := range labels {
		if _, err := stmt.ExecContext(ctx, i, l); err != nil {
			return fmt.Errorf("insert class %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ClassLabels returns the stored class labels by class id.
func (s *Store) ClassLabels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label FROM class_labels ORDER BY class_idx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// PutSequences stores sequences in one transaction, replacing existing rows
// with the same (epoch, index) together with their garbage sequences.
func (s *Store) PutSequences(ctx context.Context, seqs []Sequence) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	seqStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO sequences (epoch, seq_idx, orth, labels) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer seqStmt.Close()
	delStmt, err := tx.PrepareContext(ctx, `DELETE FROM garbage WHERE epoch = ? AND seq_idx = ?`)
	if err != nil {
		return err
	}
	defer delStmt.Close()
	garbageStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO garbage (epoch, seq_idx, k, labels) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer garbageStmt.Close()

	for _, seq := range seqs {
		if _, err := seqStmt.ExecContext(ctx, seq.Epoch, seq.Index, seq.Orth, encodeLabels(seq.Labels)); err != nil {
			return fmt.Errorf("insert sequence %d/%d: %w", seq.Epoch, seq.Index, err)
		}
		if _, err := delStmt.ExecContext(ctx, seq.Epoch, seq.Index); err != nil {
			return fmt.Errorf("clear garbage %d/%d: %w", seq.Epoch, seq.Index, err)
		}
		for k, g := range seq.Garbage {
			if _, err := garbageStmt.ExecContext(ctx, seq.Epoch, seq.Index, k, encodeLabels(g)); err != nil {
				return fmt.Errorf("insert garbage %d/%d/%d: %w", seq.Epoch, seq.Index, k, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("stored sequences", slog.Int("count", len(seqs)))
	return nil
}

// Sequence loads one stored sequence.
func (s *Store) Sequence(ctx context.Context, epoch int64, idx int) (Sequence, error) {
	seq := Sequence{Epoch: epoch, Index: idx}
	var labels string
	err := s.db.QueryRowContext(ctx,
		`SELECT orth, labels FROM sequences WHERE epoch = ? AND seq_idx = ?`, epoch, idx).
		Scan(&seq.Orth, &labels)
	if errors.Is(err, sql.ErrNoRows) {
		return seq, fmt.Errorf("%w: epoch %d index %d", ErrNotFound, epoch, idx)
	}
	if err != nil {
		return seq, err
	}
	if seq.Labels, err = decodeLabels(labels); err != nil {
		return seq, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT labels FROM garbage WHERE epoch = ? AND seq_idx = ? ORDER BY k`, epoch, idx)
	if err != nil {
		return seq, err
	}
	defer rows.Close()
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return seq, err
		}
		g, err := decodeLabels(line)
		if err != nil {
			return seq, err
		}
		seq.Garbage = append(seq.Garbage, g)
	}
	return seq, rows.Err()
}

// Count returns the number of sequences stored for an epoch.
func (s *Store) Count(ctx context.Context, epoch int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sequences WHERE epoch = ?`, epoch).Scan(&n)
	return n, err
}

func encodeLabels(labels []int) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = strconv.Itoa(l)
	}
	return strings.Join(parts, " ")
}

func decodeLabels(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("stored label %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}
