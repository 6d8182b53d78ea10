package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"unicode"

	_ "modernc.org/sqlite" // pure Go driver

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

const (
	tierMain     = "main"
	tierRealtime = "realtime"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	doc      INTEGER PRIMARY KEY,
	tier     TEXT NOT NULL,
	id       TEXT NOT NULL,
	ts       INTEGER NOT NULL,
	sender   TEXT NOT NULL DEFAULT '',
	thread   TEXT NOT NULL DEFAULT '',
	hasfiles INTEGER NOT NULL DEFAULT 0,
	raw      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_tier_id ON messages(tier, id);
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);

CREATE VIRTUAL TABLE IF NOT EXISTS message_fts USING fts5(
	text,
	filename,
	tokenize='unicode61'
);

-- exact-match values: tags, filetype, chatType
CREATE TABLE IF NOT EXISTS message_terms (
	doc   INTEGER NOT NULL,
	field TEXT NOT NULL,
	value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_terms_field_value ON message_terms(field, value);
CREATE INDEX IF NOT EXISTS idx_terms_doc ON message_terms(doc);
`

// SQLiteEngine keeps both indexes in one in-memory SQLite database with an
// FTS5 table for text and file names.
type SQLiteEngine struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteEngine returns an uninitialized SQLite engine.
func NewSQLiteEngine(logger *slog.Logger) *SQLiteEngine {
	return &SQLiteEngine{logger: logging.OrDefault(logger)}
}

// Init opens a fresh in-memory database.
func (s *SQLiteEngine) Init(ctx context.Context, dictPath string) error {
	if dictPath != "" {
		if _, err := os.Stat(dictPath); err != nil {
			return fmt.Errorf("dictionary %s: %w", dictPath, err)
		}
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// one connection, one in-memory database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return fmt.Errorf("initialize schema: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_ = s.db.Close()
	}
	s.db = db
	s.logger.Debug("engine_init", slog.String("backend", "sqlite"))
	return nil
}

// Destroy closes the database.
func (s *SQLiteEngine) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteEngine) ClearMainIndex(ctx context.Context) error {
	return s.clearTier(ctx, tierMain)
}

func (s *SQLiteEngine) ClearRealtimeIndex(ctx context.Context) error {
	return s.clearTier(ctx, tierRealtime)
}

func (s *SQLiteEngine) clearTier(ctx context.Context, tier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errNotInitialized
	}
	_, err := s.deleteDocs(ctx, "SELECT doc FROM messages WHERE tier = ?", tier)
	return err
}

// deleteDocs removes every document selected by sel from all tables and
// returns how many were removed. Ids are collected first since sel may
// depend on the FTS rows being deleted.
func (s *SQLiteEngine) deleteDocs(ctx context.Context, sel string, args ...any) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	docs, err := selectDocs(ctx, tx, sel, args...)
	if err != nil {
		return 0, err
	}
	if err := deleteDocIDs(ctx, tx, docs); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(docs), nil
}

func selectDocs(ctx context.Context, tx *sql.Tx, sel string, args ...any) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()
	var docs []int64
	for rows.Next() {
		var d int64
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("select documents: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func deleteDocIDs(ctx context.Context, tx *sql.Tx, docs []int64) error {
	for _, d := range docs {
		for _, q := range []string{
			"DELETE FROM message_fts WHERE rowid = ?",
			"DELETE FROM message_terms WHERE doc = ?",
			"DELETE FROM messages WHERE doc = ?",
		} {
			if _, err := tx.ExecContext(ctx, q, d); err != nil {
				return fmt.Errorf("delete document %d: %w", d, err)
			}
		}
	}
	return nil
}

func (s *SQLiteEngine) IndexMain(ctx context.Context, messagesJSON string) (int, error) {
	return s.index(ctx, tierMain, messagesJSON)
}

func (s *SQLiteEngine) IndexRealtime(ctx context.Context, messagesJSON string) (int, error) {
	return s.index(ctx, tierRealtime, messagesJSON)
}

func (s *SQLiteEngine) index(ctx context.Context, tier, messagesJSON string) (int, error) {
	msgs, err := ParseMessages(messagesJSON)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, errNotInitialized
	}
	return s.insert(ctx, tier, msgs)
}

func (s *SQLiteEngine) insert(ctx context.Context, tier string, msgs []Message) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range msgs {
		m := &msgs[i]
		id := string(m.MessageID)
		if id != "" {
			// re-indexing a message replaces it
			old, err := selectDocs(ctx, tx, "SELECT doc FROM messages WHERE tier = ? AND id = ?", tier, id)
			if err != nil {
				return 0, err
			}
			if err := deleteDocIDs(ctx, tx, old); err != nil {
				return 0, err
			}
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (tier, id, ts, sender, thread, hasfiles, raw) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tier, id, m.Timestamp(), string(m.SenderID), string(m.ThreadID), boolInt(m.HasFiles()), string(m.Raw))
		if err != nil {
			return 0, fmt.Errorf("insert message %s: %w", id, err)
		}
		doc, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("insert message %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_fts (rowid, text, filename) VALUES (?, ?, ?)`,
			doc, m.Text, m.FileNames()); err != nil {
			return 0, fmt.Errorf("index text %s: %w", id, err)
		}

		terms := map[string][]string{FieldTags: m.LowerTags(), FieldFileType: m.FileTypes()}
		if m.ChatType != "" {
			terms[FieldChatType] = []string{m.ChatType}
		}
		for field, values := range terms {
			for _, v := range values {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO message_terms (doc, field, value) VALUES (?, ?, ?)`,
					doc, field, v); err != nil {
					return 0, fmt.Errorf("index terms %s: %w", id, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(msgs), nil
}

// Search runs req across both tiers.
func (s *SQLiteEngine) Search(ctx context.Context, req SearchRequest) (*Result, error) {
	node := ParseQuery(req.Query)
	if node == nil {
		return marshalResult(EmptyResult())
	}
	c := compileSQL(node)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errNotInitialized
	}

	where := "(" + c.cond + ") AND m.ts BETWEEN ? AND ?"
	whereArgs := append(append([]any{}, c.args...), req.StartTs, req.EndTs)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages m WHERE "+where, whereArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	order := "m.ts DESC, m.doc DESC"
	args := whereArgs
	if req.SortOrder == SortByScore {
		order = c.score + " DESC, " + order
		args = append(args, c.scoreArgs...)
	}
	args = append(args, req.Limit, req.Offset)

	rows, err := s.db.QueryContext(ctx,
		"SELECT m.raw FROM messages m WHERE "+where+" ORDER BY "+order+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	hits := []json.RawMessage{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read hits: %w", err)
	}
	return marshalResult(NewSearchResult(hits, total, req.Offset))
}

// GetLastTimestamp returns the newest main-tier timestamp.
func (s *SQLiteEngine) GetLastTimestamp(ctx context.Context) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errNotInitialized
	}
	var ts sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(ts) FROM messages WHERE tier = ?", tierMain).Scan(&ts); err != nil {
		return nil, fmt.Errorf("latest timestamp: %w", err)
	}
	if !ts.Valid {
		return NewResult([]byte(config.MinimumDate)), nil
	}
	return NewResult([]byte(FormatTimestamp(ts.Int64))), nil
}

// DeleteMessages removes matching messages from both tiers.
func (s *SQLiteEngine) DeleteMessages(ctx context.Context, filter string, fromTs, toTs int64) (int, error) {
	cond, args := "1", []any(nil)
	if node := ParseQuery(filter); node != nil {
		c := compileSQL(node)
		cond, args = c.cond, c.args
	}
	sel := "SELECT m.doc FROM messages m WHERE (" + cond + ") AND m.ts BETWEEN ? AND ?"
	args = append(args, fromTs, toTs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, errNotInitialized
	}
	return s.deleteDocs(ctx, sel, args...)
}

// SerializeMainIndex writes the main tier as an encrypted snapshot.
func (s *SQLiteEngine) SerializeMainIndex(ctx context.Context, dir string, key []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, errNotInitialized
	}
	rows, err := s.db.QueryContext(ctx, "SELECT raw FROM messages WHERE tier = ? ORDER BY doc", tierMain)
	if err != nil {
		return 0, fmt.Errorf("read main index: %w", err)
	}
	defer rows.Close()

	var raws []json.RawMessage
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return 0, fmt.Errorf("read main index: %w", err)
		}
		raws = append(raws, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("read main index: %w", err)
	}

	m, err := WriteSnapshot(dir, key, raws)
	if err != nil {
		return 0, err
	}
	return m.Count, nil
}

// DeserializeMainIndex replaces the main tier with the snapshot under dir.
func (s *SQLiteEngine) DeserializeMainIndex(ctx context.Context, dir string, key []byte) (int, error) {
	raws, _, err := OpenSnapshot(dir, key)
	if err != nil {
		return 0, err
	}
	msgs := make([]Message, 0, len(raws))
	for _, raw := range raws {
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return 0, fmt.Errorf("decode snapshot message: %w", err)
		}
		m.Raw = raw
		msgs = append(msgs, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, errNotInitialized
	}
	if _, err := s.deleteDocs(ctx, "SELECT doc FROM messages WHERE tier = ?", tierMain); err != nil {
		return 0, err
	}
	return s.insert(ctx, tierMain, msgs)
}

type compiledSQL struct {
	cond      string
	args      []any
	score     string
	scoreArgs []any
}

// compileSQL turns a parsed query into a WHERE condition over messages m and
// a relevance expression that sums the token counts of matched text leaves.
func compileSQL(n Node) compiledSQL {
	var c compiledSQL
	var leaves []string
	c.cond = c.build(n, &leaves)
	if len(leaves) == 0 {
		c.score = "0"
	} else {
		c.score = "(" + strings.Join(leaves, " + ") + ")"
	}
	return c
}

func (c *compiledSQL) build(n Node, leaves *[]string) string {
	switch n := n.(type) {
	case And:
		return c.join(n.Children, " AND ", leaves)
	case Or:
		return c.join(n.Children, " OR ", leaves)
	case Term:
		return c.term(n, leaves)
	}
	return "0"
}

func (c *compiledSQL) join(children []Node, op string, leaves *[]string) string {
	parts := make([]string, 0, len(children))
	for _, ch := range children {
		parts = append(parts, c.build(ch, leaves))
	}
	return "(" + strings.Join(parts, op) + ")"
}

func (c *compiledSQL) term(t Term, leaves *[]string) string {
	switch t.Field {
	case FieldText, FieldFilename:
		if !hasWordRune(t.Value) {
			return "0"
		}
		match := t.Field + ` : "` + strings.ReplaceAll(t.Value, `"`, `""`) + `"`
		cond := "m.doc IN (SELECT rowid FROM message_fts WHERE message_fts MATCH ?)"
		c.args = append(c.args, match)
		if t.Field == FieldText {
			*leaves = append(*leaves, fmt.Sprintf("(CASE WHEN %s THEN %d ELSE 0 END)", cond, len(strings.Fields(t.Value))))
			c.scoreArgs = append(c.scoreArgs, match)
		}
		return cond
	case FieldSenderID:
		c.args = append(c.args, t.Value)
		return "m.sender = ?"
	case FieldThreadID:
		c.args = append(c.args, t.Value)
		return "m.thread = ?"
	case FieldMessageID:
		c.args = append(c.args, t.Value)
		return "m.id = ?"
	case FieldHasFiles:
		c.args = append(c.args, boolInt(strings.EqualFold(t.Value, "true")))
		return "m.hasfiles = ?"
	default:
		c.args = append(c.args, t.Field, keywordValue(t.Field, t.Value))
		return "m.doc IN (SELECT doc FROM message_terms WHERE field = ? AND value = ?)"
	}
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Engine = (*SQLiteEngine)(nil)
