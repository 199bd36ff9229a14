// Package cyclelog persists one audit row per decision cycle so runs can
// be replayed and inspected after the fact.
package cyclelog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// Record 代表一条决策周期日志。Zero-valued decimals serialize as "0".
type Record struct {
	ID         int64           `json:"id"`
	TraceID    string          `json:"trace_id"`
	Timestamp  int64           `json:"ts"`
	Auth       string          `json:"auth"`
	StockCode  string          `json:"stock_code"`
	StockName  string          `json:"stock_name,omitempty"`
	Decision   string          `json:"decision"`
	SkipReason string          `json:"skip_reason,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Signals    map[string]bool `json:"signals,omitempty"`
	Reasons    []string        `json:"reasons,omitempty"`
	Profit     decimal.Decimal `json:"profit"`
	Note       string          `json:"note,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Query 用于筛选周期日志。
type Query struct {
	Auth     string
	Decision string
	Limit    int
	Offset   int
}

type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	ownsDB bool
}

// New opens (or creates) the cycle-log SQLite database at path.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("cycle log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, ownsDB: true}, nil
}

// UseExternalDB 复用外部已初始化的 SQLite 连接，避免多连接锁冲突。
func (s *Store) UseExternalDB(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("external db cannot be nil")
	}
	if err := ensureSchema(db); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsDB && s.db != nil && s.db != db {
		_ = s.db.Close()
	}
	s.db = db
	s.ownsDB = false
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if !s.ownsDB {
		s.db = nil
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decision_cycles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT,
			ts INTEGER NOT NULL,
			auth TEXT NOT NULL,
			stock_code TEXT NOT NULL,
			stock_name TEXT,
			decision TEXT NOT NULL,
			skip_reason TEXT,
			price TEXT,
			signals_json TEXT,
			reasons_json TEXT,
			profit TEXT,
			note TEXT,
			error TEXT,
			created_at INTEGER NOT NULL
		);
		`,
		`CREATE INDEX IF NOT EXISTS idx_decision_cycles_auth_ts_id ON decision_cycles(auth, ts DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_cycles_decision ON decision_cycles(decision);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_cycles_trace ON decision_cycles(trace_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, rec Record) (int64, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return 0, fmt.Errorf("cycle log store not initialized")
	}
	ts := rec.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	enc := func(v interface{}) string {
		if v == nil {
			return ""
		}
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO decision_cycles
			(trace_id, ts, auth, stock_code, stock_name, decision, skip_reason,
			 price, signals_json, reasons_json, profit, note, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID,
		ts,
		rec.Auth,
		rec.StockCode,
		rec.StockName,
		rec.Decision,
		rec.SkipReason,
		rec.Price.String(),
		enc(rec.Signals),
		enc(rec.Reasons),
		rec.Profit.String(),
		rec.Note,
		rec.Error,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// List returns cycles newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("cycle log store not initialized")
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	filterSQL, args := buildFilter(q)
	var sb strings.Builder
	sb.WriteString(`SELECT id, trace_id, ts, auth, stock_code, stock_name, decision,
		skip_reason, price, signals_json, reasons_json, profit, note, error
		FROM decision_cycles`)
	sb.WriteString(filterSQL)
	sb.WriteString(" ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, offset)
	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// Count 统计满足筛选条件的周期数量。
func (s *Store) Count(ctx context.Context, q Query) (int, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return 0, fmt.Errorf("cycle log store not initialized")
	}
	filterSQL, args := buildFilter(q)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decision_cycles`+filterSQL, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListByTraceID returns every row sharing a trace, oldest first.
func (s *Store) ListByTraceID(ctx context.Context, traceID string, limit int) ([]Record, error) {
	traceID = strings.TrimSpace(traceID)
	if traceID == "" {
		return nil, fmt.Errorf("trace_id cannot be empty")
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("cycle log store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := db.QueryContext(ctx, `SELECT id, trace_id, ts, auth, stock_code, stock_name, decision,
		skip_reason, price, signals_json, reasons_json, profit, note, error
		FROM decision_cycles WHERE trace_id = ?
		ORDER BY ts ASC, id ASC
		LIMIT ?`, traceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func buildFilter(q Query) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if auth := strings.TrimSpace(q.Auth); auth != "" {
		conds = append(conds, "auth = ?")
		args = append(args, auth)
	}
	if dec := strings.TrimSpace(q.Decision); dec != "" {
		conds = append(conds, "decision = ?")
		args = append(args, dec)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var stockName, skipReason, price, signalsJSON, reasonsJSON, profit, note, errText sql.NullString
	var traceID sql.NullString
	if err := rows.Scan(
		&rec.ID, &traceID, &rec.Timestamp, &rec.Auth, &rec.StockCode, &stockName,
		&rec.Decision, &skipReason, &price, &signalsJSON, &reasonsJSON, &profit,
		&note, &errText,
	); err != nil {
		return Record{}, err
	}
	rec.TraceID = traceID.String
	rec.StockName = stockName.String
	rec.SkipReason = skipReason.String
	rec.Note = note.String
	rec.Error = errText.String
	if price.Valid && price.String != "" {
		if d, err := decimal.NewFromString(price.String); err == nil {
			rec.Price = d
		}
	}
	if profit.Valid && profit.String != "" {
		if d, err := decimal.NewFromString(profit.String); err == nil {
			rec.Profit = d
		}
	}
	if signalsJSON.Valid && signalsJSON.String != "" {
		_ = json.Unmarshal([]byte(signalsJSON.String), &rec.Signals)
	}
	if reasonsJSON.Valid && reasonsJSON.String != "" {
		_ = json.Unmarshal([]byte(reasonsJSON.String), &rec.Reasons)
	}
	return rec, nil
}
