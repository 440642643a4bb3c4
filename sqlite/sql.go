package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/hoshinonyaruko/crumbway/structs"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDSN 是共享的内存数据库，进程退出后数据不保留
const DefaultDSN = "file:crumbway?mode=memory&cache=shared"

const createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS Sessions (
    SessionID TEXT PRIMARY KEY,
    MapWidth REAL,
    MapHeight REAL,
    CreatedAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const createObstaclesTableSQL = `
CREATE TABLE IF NOT EXISTS Obstacles (
    SessionID TEXT,
    ItemID TEXT,
    Seq INTEGER,
    X REAL,
    Y REAL,
    Width REAL,
    Height REAL,
    Kind TEXT,
    Name TEXT,
    PRIMARY KEY (SessionID, ItemID)
);
`

const createTargetsTableSQL = `
CREATE TABLE IF NOT EXISTS Targets (
    SessionID TEXT,
    ItemID TEXT,
    Seq INTEGER,
    X REAL,
    Y REAL,
    Kind TEXT,
    Label TEXT,
    PRIMARY KEY (SessionID, ItemID)
);
`

const createTargetsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_target_session ON Targets (SessionID);
`

const createObstaclesIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_obstacle_session ON Obstacles (SessionID);
`

// Open 打开数据库并建表
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// 内存库在最后一个连接关闭时被销毁；单连接同时避免共享缓存的表锁
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := InitializeDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func executeSQL(db *sql.DB, sqlStatement string) error {
	if _, err := db.Exec(sqlStatement); err != nil {
		log.Printf("Error executing SQL statement: %s\n%s", sqlStatement, err)
		return err
	}
	return nil
}

func InitializeDatabase(db *sql.DB) error {
	for _, stmt := range []string{
		createSessionsTableSQL,
		createObstaclesTableSQL,
		createTargetsTableSQL,
		createTargetsIndexSQL,
		createObstaclesIndexSQL,
	} {
		if err := executeSQL(db, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateSession 记录一个新的会话
func CreateSession(db *sql.DB, sessionID string, width, height float64) error {
	_, err := db.Exec("INSERT OR REPLACE INTO Sessions (SessionID, MapWidth, MapHeight) VALUES (?, ?, ?)",
		sessionID, width, height)
	return err
}

// SessionExists reports whether the session row exists.
func SessionExists(db *sql.DB, sessionID string) (bool, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM Sessions WHERE SessionID = ?", sessionID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteSession 删除会话及其所有物品
func DeleteSession(db *sql.DB, sessionID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range []string{
		"DELETE FROM Obstacles WHERE SessionID = ?",
		"DELETE FROM Targets WHERE SessionID = ?",
		"DELETE FROM Sessions WHERE SessionID = ?",
	} {
		if _, err := tx.Exec(stmt, sessionID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func nextSeq(tx *sql.Tx, table, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := tx.QueryRow(fmt.Sprintf("SELECT MAX(Seq) FROM %s WHERE SessionID = ?", table), sessionID).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq.Int64 + 1, nil
}

// AddObstacle 添加一个障碍物
func AddObstacle(db *sql.DB, sessionID string, o structs.Obstacle) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := insertObstacle(tx, sessionID, o); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertObstacle(tx *sql.Tx, sessionID string, o structs.Obstacle) error {
	seq, err := nextSeq(tx, "Obstacles", sessionID)
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT OR REPLACE INTO Obstacles (SessionID, ItemID, Seq, X, Y, Width, Height, Kind, Name) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		sessionID, o.ID, seq, o.X, o.Y, o.Width, o.Height, o.Kind, o.Name)
	return err
}

// AddTarget 添加一个目标
func AddTarget(db *sql.DB, sessionID string, t structs.Target) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := insertTarget(tx, sessionID, t); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertTarget(tx *sql.Tx, sessionID string, t structs.Target) error {
	seq, err := nextSeq(tx, "Targets", sessionID)
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT OR REPLACE INTO Targets (SessionID, ItemID, Seq, X, Y, Kind, Label) VALUES (?, ?, ?, ?, ?, ?, ?)",
		sessionID, t.ID, seq, t.X, t.Y, t.Kind, t.Label)
	return err
}

// RemoveItem 删除一个物品，返回是否存在
func RemoveItem(db *sql.DB, sessionID, itemID string) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, err
	}
	var removed int64
	for _, stmt := range []string{
		"DELETE FROM Obstacles WHERE SessionID = ? AND ItemID = ?",
		"DELETE FROM Targets WHERE SessionID = ? AND ItemID = ?",
	} {
		result, err := tx.Exec(stmt, sessionID, itemID)
		if err != nil {
			tx.Rollback()
			return false, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			tx.Rollback()
			return false, err
		}
		removed += n
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return removed > 0, nil
}

// ClearItems 清空会话的所有物品
func ClearItems(db *sql.DB, sessionID string) error {
	return ReplaceItems(db, sessionID, structs.ItemSet{})
}

// ReplaceItems 在一个事务中整体替换物品集合
func ReplaceItems(db *sql.DB, sessionID string, set structs.ItemSet) error {
	// 开启事务
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM Obstacles WHERE SessionID = ?", sessionID); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec("DELETE FROM Targets WHERE SessionID = ?", sessionID); err != nil {
		tx.Rollback()
		return err
	}

	for _, o := range set.Obstacles {
		if err := insertObstacle(tx, sessionID, o); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, t := range set.Targets {
		if err := insertTarget(tx, sessionID, t); err != nil {
			tx.Rollback()
			return err
		}
	}

	// 提交事务
	return tx.Commit()
}

// LoadItems 读取会话的物品集合，按添加顺序排列
func LoadItems(db *sql.DB, sessionID string) (structs.ItemSet, error) {
	var set structs.ItemSet
	obstacles, err := loadObstacles(db, sessionID)
	if err != nil {
		return set, err
	}
	targets, err := loadTargets(db, sessionID)
	if err != nil {
		return set, err
	}
	set.Obstacles = obstacles
	set.Targets = targets
	return set, nil
}

func loadObstacles(db *sql.DB, sessionID string) ([]structs.Obstacle, error) {
	rows, err := db.Query("SELECT ItemID, X, Y, Width, Height, Kind, Name FROM Obstacles WHERE SessionID = ? ORDER BY Seq", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []structs.Obstacle
	for rows.Next() {
		var o structs.Obstacle
		if err := rows.Scan(&o.ID, &o.X, &o.Y, &o.Width, &o.Height, &o.Kind, &o.Name); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func loadTargets(db *sql.DB, sessionID string) ([]structs.Target, error) {
	rows, err := db.Query("SELECT ItemID, X, Y, Kind, Label FROM Targets WHERE SessionID = ? ORDER BY Seq", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []structs.Target
	for rows.Next() {
		var t structs.Target
		if err := rows.Scan(&t.ID, &t.X, &t.Y, &t.Kind, &t.Label); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
