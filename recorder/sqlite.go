package recorder

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// flushEvery 每累计多少条记录提交一次事务
const flushEvery = 500

// DB 指标数据库
// 功能：保存逐步指标（ticks表）与批量实验汇总（runs表）
type DB struct {
	*sql.DB
}

// OpenDB 打开（或创建）SQLite指标数据库
// 参数：path-数据库文件路径
// 返回：数据库句柄
// 说明：启用WAL并限制为单连接，多个仿真实例共用同一句柄时写入串行化
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("recorder: %s: %w", pragma, err)
		}
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			t DOUBLE NOT NULL,
			q_n INTEGER, q_s INTEGER, q_e INTEGER, q_w INTEGER,
			total INTEGER,
			priority INTEGER,
			active_phase INTEGER,
			state TEXT,
			exited INTEGER,
			PRIMARY KEY (run_id, step)
		);
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			load TEXT,
			policy TEXT,
			seed BIGINT,
			steps INTEGER,
			mean_queue DOUBLE,
			std_queue DOUBLE,
			max_queue INTEGER,
			mean_priority DOUBLE,
			throughput INTEGER,
			switches INTEGER
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

// Run 一次仿真的汇总
type Run struct {
	RunID        string
	Load         string
	Policy       string
	Seed         uint64
	Steps        int
	MeanQueue    float64
	StdQueue     float64
	MaxQueue     int
	MeanPriority float64
	Throughput   int
	Switches     int
}

// RecordRun 写入一次仿真的汇总
func (db *DB) RecordRun(r Run) error {
	_, err := db.Exec(
		`INSERT OR REPLACE INTO runs (run_id, load, policy, seed, steps, mean_queue, std_queue, max_queue, mean_priority, throughput, switches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Load, r.Policy, int64(r.Seed), r.Steps, r.MeanQueue, r.StdQueue, r.MaxQueue, r.MeanPriority, r.Throughput, r.Switches,
	)
	return err
}

// Runs 全部汇总，按run_id排序
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`SELECT run_id, load, policy, seed, steps, mean_queue, std_queue, max_queue, mean_priority, throughput, switches FROM runs ORDER BY run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var seed int64
		if err := rows.Scan(&r.RunID, &r.Load, &r.Policy, &seed, &r.Steps, &r.MeanQueue, &r.StdQueue, &r.MaxQueue, &r.MeanPriority, &r.Throughput, &r.Switches); err != nil {
			return nil, err
		}
		r.Seed = uint64(seed)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Ticks 某次仿真的逐步指标，按步数排序
func (db *DB) Ticks(runID string) ([]Record, error) {
	rows, err := db.Query(`SELECT run_id, step, t, q_n, q_s, q_e, q_w, total, priority, active_phase, state, exited
		FROM ticks WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.RunID, &r.Step, &r.T, &r.Queues[0], &r.Queues[1], &r.Queues[2], &r.Queues[3],
			&r.Total, &r.Priority, &r.ActivePhase, &r.State, &r.Exited); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SQLiteSink 写入ticks表的指标输出
// 功能：缓存记录，每flushEvery条在一个事务内批量写入，Close时写入剩余记录
type SQLiteSink struct {
	db      *DB
	pending []Record
	owned   bool // Close时是否关闭数据库
}

// NewSink 在已打开的数据库上创建输出
func (db *DB) NewSink() *SQLiteSink {
	return &SQLiteSink{db: db}
}

// NewSQLite 打开数据库文件并创建独占的输出，Close时一并关闭数据库
func NewSQLite(path string) (*SQLiteSink, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	s := db.NewSink()
	s.owned = true
	return s, nil
}

func (s *SQLiteSink) Write(r Record) error {
	s.pending = append(s.pending, r)
	if len(s.pending) >= flushEvery {
		return s.Flush()
	}
	return nil
}

// Flush 将缓存的记录写入数据库
func (s *SQLiteSink) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO ticks
		(run_id, step, t, q_n, q_s, q_e, q_w, total, priority, active_phase, state, exited)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range s.pending {
		if _, err := stmt.Exec(r.RunID, r.Step, r.T, r.Queues[0], r.Queues[1], r.Queues[2], r.Queues[3],
			r.Total, r.Priority, r.ActivePhase, r.State, r.Exited); err != nil {
			tx.Rollback()
			return fmt.Errorf("recorder: insert step %d: %w", r.Step, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Debugf("flushed %d records", len(s.pending))
	s.pending = s.pending[:0]
	return nil
}

func (s *SQLiteSink) Close() error {
	err := s.Flush()
	if s.owned {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
