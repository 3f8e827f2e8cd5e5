package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

// Config DBconn config
type Config struct {
	DriverName string
	ConnInfo   string

	TableName string
}

// DBconn db 연결정보
type DBconn struct {
	DriverName string
	ConnInfo   string

	TableName string

	db *sql.DB
}

// Item 업로드 기록 항목
type Item struct {
	Filename    string    `json:"filename"`
	OrgFilename string    `json:"orig_filename"`
	FileFormat  string    `json:"format"`
	MIME        string    `json:"mime"`
	Bytes       int64     `json:"bytes"`
	Prediction  string    `json:"prediction"`
	CreateAt    time.Time `json:"created_at"`
}

func (conn *DBconn) createTable() error {
	if _, err := conn.db.Exec(fmt.Sprintf(`CREATE TABLE %s (
		filename VARCHAR(255) NOT NULL,
		orgfilename VARCHAR(255) NOT NULL,
		format VARCHAR(10) NOT NULL,
		mime VARCHAR(80) NOT NULL,
		bytes BIGINT NOT NULL,
		prediction VARCHAR(20) NOT NULL,
		createAt DATETIME NOT NULL);`, conn.TableName)); err != nil {
		return err
	}

	return nil
}

func (conn *DBconn) existsTable() bool {
	var n int
	err := conn.db.QueryRow(fmt.Sprintf("SELECT 1 FROM %s LIMIT 1;", conn.TableName)).Scan(&n)

	return err == nil || err == sql.ErrNoRows
}

func (conn *DBconn) initTable() error {
	if !conn.existsTable() {
		return conn.createTable()
	}

	return nil
}

// Insert entry 삽입
func (conn *DBconn) Insert(item Item) error {
	createAt := item.CreateAt.UTC().Format(timeLayout)

	_, err := conn.db.Exec(fmt.Sprintf(`INSERT INTO %s (
		filename,
		orgfilename,
		format,
		mime,
		bytes,
		prediction,
		createAt) VALUES (?, ?, ?, ?, ?, ?, ?);`, conn.TableName),
		item.Filename, item.OrgFilename, item.FileFormat, item.MIME,
		item.Bytes, item.Prediction, createAt,
	)

	return err
}

// where 비어있지 않은 항목만 조건으로 사용
func where(param Item) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)

	if param.Filename != "" {
		conds = append(conds, "filename = ?")
		args = append(args, param.Filename)
	}
	if param.OrgFilename != "" {
		conds = append(conds, "orgfilename = ?")
		args = append(args, param.OrgFilename)
	}
	if param.Prediction != "" {
		conds = append(conds, "prediction = ?")
		args = append(args, param.Prediction)
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// Get entry 조회
func (conn *DBconn) Get(param Item) ([]Item, error) {
	cond, args := where(param)

	rows, err := conn.db.Query(fmt.Sprintf(`SELECT
		filename,
		orgfilename,
		format,
		mime,
		bytes,
		prediction,
		createAt FROM %s%s ORDER BY createAt;`, conn.TableName, cond), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var (
			item     Item
			createAt string
		)
		if err := rows.Scan(
			&item.Filename,
			&item.OrgFilename,
			&item.FileFormat,
			&item.MIME,
			&item.Bytes,
			&item.Prediction,
			&createAt,
		); err != nil {
			return nil, err
		}

		if item.CreateAt, err = parseTime(createAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// Delete entry 삭제
func (conn *DBconn) Delete(param Item) (int64, error) {
	cond, args := where(param)
	if cond == "" {
		return 0, fmt.Errorf("Refuse to delete all entries of %s", conn.TableName)
	}

	res, err := conn.db.Exec(fmt.Sprintf("DELETE FROM %s%s;", conn.TableName, cond), args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// driver에 따라 DATETIME이 문자열 또는 time.Time으로 반환됨
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("Invalid createAt: %s", s)
}

// Destroy db connection 해제
func (conn *DBconn) Destroy() error {
	return conn.db.Close()
}

// New 새로운 db connection 생성
func New(cfg Config) (*DBconn, error) {
	db, err := sql.Open(cfg.DriverName, cfg.ConnInfo)
	if err != nil {
		return nil, err
	}

	conn := &DBconn{
		DriverName: cfg.DriverName,
		ConnInfo:   cfg.ConnInfo,
		TableName:  cfg.TableName,
		db:         db,
	}

	if err := conn.initTable(); err != nil {
		db.Close()
		return nil, err
	}

	return conn, nil
}
