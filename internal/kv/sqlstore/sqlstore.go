// Package sqlstore implements kv.Driver over a real SQL engine, storing
// the ordered byte-map in a `coredb_kv (k VARBINARY(3072) PRIMARY KEY,
// v LONGBLOB)` table.
// Two backends are registered: "mysql" (github.com/go-sql-driver/mysql)
// and "dolt" (github.com/dolthub/driver, a version-controlled MySQL
// dialect). DSN construction follows the pragma/query-string building
// style of the teacher's internal/storage/connstring.go.
package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/dolthub/driver"
	_ "github.com/go-sql-driver/mysql"

	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/lockfile"
)

func init() {
	kv.Register("mysql", func(ctx context.Context, dsn string, opts kv.Options) (kv.Driver, error) {
		return open(ctx, "mysql", dsn, opts)
	})
	kv.Register("dolt", func(ctx context.Context, dsn string, opts kv.Options) (kv.Driver, error) {
		return open(ctx, "dolt", dsn, opts)
	})
}

const tableDDL = `CREATE TABLE IF NOT EXISTS coredb_kv (
	k VARBINARY(3072) PRIMARY KEY,
	v LONGBLOB NOT NULL
)`

// BuildDSN composes a driver connection string the way connstring.go
// builds its SQLite pragma string, honoring Options.ServerMode/Host/Port.
func BuildDSN(driverName, dsn string, opts kv.Options) string {
	if opts.ServerMode {
		user := opts.User
		if user == "" {
			user = "root"
		}
		host := opts.Host
		if host == "" {
			host = "127.0.0.1"
		}
		port := opts.Port
		if port == 0 {
			port = 3306
		}
		db := opts.Database
		if db == "" {
			db = "coredb"
		}
		cred := user
		if opts.Password != "" {
			cred = fmt.Sprintf("%s:%s", user, opts.Password)
		}
		return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", cred, host, port, db)
	}
	return dsn
}

type Driver struct {
	db   *sql.DB
	lock *lockfile.Lock
}

// acquireLock guards a local dolt repository directory against a second
// process opening it underneath this one. Only the "dolt" driver can
// address a plain filesystem path instead of a network DSN (mysql
// always dials a server, and a dolt DSN given as a bare path rather
// than a "user@tcp(...)"-shaped string is the signal it names a local
// repo directory); every other case is a SQL server that arbitrates its
// own concurrent connections, so there is no local directory to lock.
// Honors opts.LockTimeout by polling for up to that duration before
// giving up.
func acquireLock(driverName, dsn string, opts kv.Options) (*lockfile.Lock, error) {
	if driverName != "dolt" || opts.ServerMode || strings.Contains(dsn, "@") {
		return nil, nil
	}
	l, err := lockfile.New(dsn + ".lock")
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open lock file: %w", err)
	}
	deadline := time.Now().Add(time.Duration(opts.LockTimeout) * time.Millisecond)
	for {
		err := l.Exclusive()
		if err == nil {
			return l, nil
		}
		if !lockfile.IsLocked(err) {
			_ = l.Close()
			return nil, fmt.Errorf("sqlstore: acquire lock: %w", err)
		}
		if opts.LockTimeout <= 0 || time.Now().After(deadline) {
			_ = l.Close()
			return nil, fmt.Errorf("sqlstore: acquire lock: %w", lockfile.ErrLocked)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func open(ctx context.Context, driverName, dsn string, opts kv.Options) (kv.Driver, error) {
	lock, err := acquireLock(driverName, dsn, opts)
	if err != nil {
		return nil, err
	}
	full := BuildDSN(driverName, dsn, opts)
	db, err := sql.Open(driverName, full)
	if err != nil {
		if lock != nil {
			_ = lock.Close()
		}
		return nil, fmt.Errorf("sqlstore: open %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		if lock != nil {
			_ = lock.Close()
		}
		return nil, fmt.Errorf("sqlstore: ping %s: %w", driverName, err)
	}
	if _, err := db.ExecContext(ctx, tableDDL); err != nil {
		if lock != nil {
			_ = lock.Close()
		}
		return nil, fmt.Errorf("sqlstore: create table: %w", err)
	}
	return &Driver{db: db, lock: lock}, nil
}

func (d *Driver) Begin(ctx context.Context, opts kv.TxOptions) (kv.Tx, error) {
	sqlTx, err := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: begin: %w", err)
	}
	return &tx{sqlTx: sqlTx, opts: opts}, nil
}

func (d *Driver) Close(ctx context.Context) error {
	if d.lock != nil {
		_ = d.lock.Close()
	}
	return d.db.Close()
}

type tx struct {
	sqlTx *sql.Tx
	opts  kv.TxOptions
	done  bool
}

func (t *tx) checkDone() error {
	if t.done {
		return kv.ErrTxDone
	}
	return nil
}

func (t *tx) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := t.checkDone(); err != nil {
		return nil, err
	}
	var v []byte
	err := t.sqlTx.QueryRowContext(ctx, `SELECT v FROM coredb_kv WHERE k = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get: %w", err)
	}
	return v, nil
}

func (t *tx) Exists(ctx context.Context, key []byte) (bool, error) {
	_, err := t.Get(ctx, key)
	if err == kv.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (t *tx) Set(ctx context.Context, key, val []byte) error {
	if err := t.checkDone(); err != nil {
		return err
	}
	if t.opts.ReadOnly {
		return kv.ErrReadOnly
	}
	_, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO coredb_kv (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)`, key, val)
	if err != nil {
		return fmt.Errorf("sqlstore: set: %w", err)
	}
	return nil
}

func (t *tx) Put(ctx context.Context, key, val, expect []byte) error {
	if err := t.checkDone(); err != nil {
		return err
	}
	if t.opts.ReadOnly {
		return kv.ErrReadOnly
	}
	cur, err := t.Get(ctx, key)
	if err != nil && err != kv.ErrNotFound {
		return err
	}
	if expect == nil {
		if err == nil {
			return fmt.Errorf("sqlstore: put %x: %w", key, kv.ErrKeyExists)
		}
	} else if err == kv.ErrNotFound || !bytes.Equal(cur, expect) {
		return fmt.Errorf("sqlstore: put %x: %w", key, kv.ErrConflict)
	}
	return t.Set(ctx, key, val)
}

func (t *tx) Del(ctx context.Context, key []byte) error {
	if err := t.checkDone(); err != nil {
		return err
	}
	if t.opts.ReadOnly {
		return kv.ErrReadOnly
	}
	_, err := t.sqlTx.ExecContext(ctx, `DELETE FROM coredb_kv WHERE k = ?`, key)
	if err != nil {
		return fmt.Errorf("sqlstore: del: %w", err)
	}
	return nil
}

// Clr is identical to Del at the storage level: the tombstone semantics
// C6's purge stage needs are expressed at the document layer (a clr'd key
// is simply absent, and C6 never re-creates a record at an expunged key
// without going through allocation again), so no side table is needed
// here.
func (t *tx) Clr(ctx context.Context, key []byte) error {
	return t.Del(ctx, key)
}

func (t *tx) Scan(ctx context.Context, begin, end []byte, limit int, reverse bool) ([]kv.KeyValue, error) {
	if err := t.checkDone(); err != nil {
		return nil, err
	}
	q := bytes.NewBufferString(`SELECT k, v FROM coredb_kv WHERE 1=1`)
	var args []interface{}
	if begin != nil {
		q.WriteString(` AND k >= ?`)
		args = append(args, begin)
	}
	if end != nil {
		q.WriteString(` AND k < ?`)
		args = append(args, end)
	}
	if reverse {
		q.WriteString(` ORDER BY k DESC`)
	} else {
		q.WriteString(` ORDER BY k ASC`)
	}
	if limit > 0 {
		q.WriteString(fmt.Sprintf(` LIMIT %d`, limit))
	}
	rows, err := t.sqlTx.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: scan: %w", err)
	}
	defer rows.Close()
	var out []kv.KeyValue
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("sqlstore: scan row: %w", err)
		}
		out = append(out, kv.KeyValue{Key: k, Value: v})
	}
	return out, rows.Err()
}

func successor(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func (t *tx) ScanPrefix(ctx context.Context, prefix []byte, limit int, reverse bool) ([]kv.KeyValue, error) {
	return t.Scan(ctx, prefix, successor(prefix), limit, reverse)
}

func (t *tx) DelPrefix(ctx context.Context, prefix []byte) error {
	entries, err := t.ScanPrefix(ctx, prefix, 0, false)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].Key, entries[j].Key) < 0 })
	for _, e := range entries {
		if err := t.Del(ctx, e.Key); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) ClrPrefix(ctx context.Context, prefix []byte) error {
	return t.DelPrefix(ctx, prefix)
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.checkDone(); err != nil {
		return err
	}
	t.done = true
	if err := t.sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

func (t *tx) Cancel(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.sqlTx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("sqlstore: rollback: %w", err)
	}
	return nil
}
