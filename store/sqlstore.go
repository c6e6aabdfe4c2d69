package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// SQLStore is a MessageStore backed by a SQL table pair: one row per
// session holding the two sequence counters, one row per saved message for
// resend replay. It works against any database/sql driver; NewPostgresStore
// and NewMySQLStore just pick the driver name, DSN dialect and parameter
// placeholder style.
//
// Schema (created by EnsureSchema, idempotent):
//
//	fix_sessions(session_id TEXT PRIMARY KEY, next_sender_seq INT, next_target_seq INT)
//	fix_messages(session_id TEXT, seq_num INT, sent_at TIMESTAMP, raw_body BYTEA/BLOB)
type SQLStore struct {
	db *sql.DB

	// placeholder renders parameter i (1-based) in this dialect's style:
	// "$1" for Postgres, "?" for MySQL.
	placeholder func(i int) string
}

func dollarPlaceholder(i int) string { return fmt.Sprintf("$%d", i) }
func questionPlaceholder(int) string { return "?" }

// NewPostgresStore opens a SQLStore against a Postgres DSN via lib/pq,
// mirroring sylr.dev/fix's use of lib/pq for session persistence.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "store: open postgres")
	}
	return &SQLStore{db: db, placeholder: dollarPlaceholder}, nil
}

// NewMySQLStore opens a SQLStore against a MySQL DSN via
// go-sql-driver/mysql, mirroring quickfix-go's mysqlstore package.
func NewMySQLStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "store: open mysql")
	}
	return &SQLStore{db: db, placeholder: questionPlaceholder}, nil
}

// q rewrites a query written with Postgres-style $1.. $n placeholders into
// this store's dialect, highest-numbered first so "$1" never matches inside
// "$10".
func (s *SQLStore) q(query string, n int) string {
	out := query
	for i := n; i >= 1; i-- {
		out = strings.ReplaceAll(out, fmt.Sprintf("$%d", i), s.placeholder(i))
	}
	return out
}

// EnsureSchema creates the store's tables if they do not already exist.
func (s *SQLStore) EnsureSchema() error {
	blobType := "BLOB"
	if s.placeholder(1) == "$1" {
		blobType = "BYTEA" // Postgres has no BLOB type
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fix_sessions (
			session_id TEXT PRIMARY KEY,
			next_sender_seq INTEGER NOT NULL DEFAULT 1,
			next_target_seq INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS fix_messages (
			session_id TEXT NOT NULL,
			seq_num INTEGER NOT NULL,
			sent_at TIMESTAMP NOT NULL,
			raw_body ` + blobType + `
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "store: ensure schema")
		}
	}
	return nil
}

func (s *SQLStore) ensureRow(session string) error {
	_, err := s.db.Exec(
		s.q(`INSERT INTO fix_sessions (session_id, next_sender_seq, next_target_seq) VALUES ($1, 1, 1)`, 1),
		session,
	)
	return err // fails with a duplicate-key error once the row exists; callers discard the error
}

func (s *SQLStore) NextSenderSeqNum(session string) (int, error) {
	var n int
	err := s.db.QueryRow(s.q(`SELECT next_sender_seq FROM fix_sessions WHERE session_id = $1`, 1), session).Scan(&n)
	if err == sql.ErrNoRows {
		_ = s.ensureRow(session)
		return 1, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "store: next sender seq")
	}
	return n, nil
}

func (s *SQLStore) NextTargetSeqNum(session string) (int, error) {
	var n int
	err := s.db.QueryRow(s.q(`SELECT next_target_seq FROM fix_sessions WHERE session_id = $1`, 1), session).Scan(&n)
	if err == sql.ErrNoRows {
		_ = s.ensureRow(session)
		return 1, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "store: next target seq")
	}
	return n, nil
}

func (s *SQLStore) IncrNextSenderSeqNum(session string) error {
	_ = s.ensureRow(session)
	_, err := s.db.Exec(s.q(`UPDATE fix_sessions SET next_sender_seq = next_sender_seq + 1 WHERE session_id = $1`, 1), session)
	return errors.Wrap(err, "store: incr sender seq")
}

func (s *SQLStore) IncrNextTargetSeqNum(session string) error {
	_ = s.ensureRow(session)
	_, err := s.db.Exec(s.q(`UPDATE fix_sessions SET next_target_seq = next_target_seq + 1 WHERE session_id = $1`, 1), session)
	return errors.Wrap(err, "store: incr target seq")
}

func (s *SQLStore) SetNextSenderSeqNum(session string, n int) error {
	_ = s.ensureRow(session)
	_, err := s.db.Exec(s.q(`UPDATE fix_sessions SET next_sender_seq = $2 WHERE session_id = $1`, 2), session, n)
	return errors.Wrap(err, "store: set sender seq")
}

func (s *SQLStore) SetNextTargetSeqNum(session string, n int) error {
	_ = s.ensureRow(session)
	_, err := s.db.Exec(s.q(`UPDATE fix_sessions SET next_target_seq = $2 WHERE session_id = $1`, 2), session, n)
	return errors.Wrap(err, "store: set target seq")
}

func (s *SQLStore) Reset(session string) error {
	_ = s.ensureRow(session)
	_, err := s.db.Exec(s.q(`UPDATE fix_sessions SET next_sender_seq = 1, next_target_seq = 1 WHERE session_id = $1`, 1), session)
	if err != nil {
		return errors.Wrap(err, "store: reset")
	}
	_, err = s.db.Exec(s.q(`DELETE FROM fix_messages WHERE session_id = $1`, 1), session)
	return errors.Wrap(err, "store: reset messages")
}

func (s *SQLStore) SaveMessage(session string, rec Record) error {
	_, err := s.db.Exec(
		s.q(`INSERT INTO fix_messages (session_id, seq_num, sent_at, raw_body) VALUES ($1, $2, $3, $4)`, 4),
		session, rec.SeqNum, rec.Sent, rec.RawBody,
	)
	return errors.Wrap(err, "store: save message")
}

func (s *SQLStore) MessagesInRange(session string, begin, end int) ([]Record, error) {
	var rows *sql.Rows
	var err error
	if end == 0 {
		rows, err = s.db.Query(
			s.q(`SELECT seq_num, sent_at, raw_body FROM fix_messages WHERE session_id = $1 AND seq_num >= $2 ORDER BY seq_num`, 2),
			session, begin,
		)
	} else {
		rows, err = s.db.Query(
			s.q(`SELECT seq_num, sent_at, raw_body FROM fix_messages WHERE session_id = $1 AND seq_num >= $2 AND seq_num <= $3 ORDER BY seq_num`, 3),
			session, begin, end,
		)
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: messages in range")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.SeqNum, &r.Sent, &r.RawBody); err != nil {
			return nil, errors.Wrap(err, "store: scan message")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error { return s.db.Close() }
