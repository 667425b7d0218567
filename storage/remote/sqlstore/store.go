// Package sqlstore is the remote store backend for SQL servers (Postgres, MySQL).
package sqlstore

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
	"github.com/trezcool/masomodb/storage/database"
)

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Store struct {
	db    *sqlx.DB
	quote func(ident string) string
}

// New wraps an open connection pool.
func New(db *sqlx.DB) *Store {
	quote := func(ident string) string { return `"` + ident + `"` }
	if db.DriverName() == "mysql" {
		quote = func(ident string) string { return "`" + ident + "`" }
	}
	return &Store{db: db, quote: quote}
}

// Dial opens a pool for u and waits for the server. key, when set, replaces the URL password.
func Dial(ctx context.Context, u *url.URL, key string, opts core.ConnectOptions) (*Store, error) {
	driver, dsn, err := DSN(u, key)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(driver, dsn, opts.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	if err := database.WaitReady(ctx, db, opts.ConnectAttempts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// DSN converts a remote URL into a driver name and data source name.
func DSN(u *url.URL, key string) (driver, dsn string, err error) {
	switch u.Scheme {
	case "postgres", "postgresql":
		cp := *u
		if key != "" {
			username := ""
			if cp.User != nil {
				username = cp.User.Username()
			}
			cp.User = url.UserPassword(username, key)
		}
		q := cp.Query()
		if q.Get("timezone") == "" {
			q.Set("timezone", "utc")
		}
		cp.RawQuery = q.Encode()
		return "postgres", cp.String(), nil

	case "mysql":
		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = u.Host
		cfg.DBName = strings.TrimPrefix(u.Path, "/")
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		if u.User != nil {
			cfg.User = u.User.Username()
			cfg.Passwd, _ = u.User.Password()
		}
		if key != "" {
			cfg.Passwd = key
		}
		if params := u.Query(); len(params) > 0 {
			cfg.Params = make(map[string]string, len(params))
			for k := range params {
				cfg.Params[k] = params.Get(k)
			}
		}
		return "mysql", cfg.FormatDSN(), nil
	}
	return "", "", errors.Errorf("unsupported sql scheme %q", u.Scheme)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ident(name string) (string, error) {
	if !identRegex.MatchString(name) {
		return "", errors.Errorf("invalid identifier %q", name)
	}
	return s.quote(name), nil
}

func (s *Store) buildSelect(table string, q core.Query) (string, []interface{}, error) {
	tbl, err := s.ident(table)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	args := make([]interface{}, 0, len(q.Filters))
	sb.WriteString("SELECT * FROM " + tbl)

	for i, f := range q.Filters {
		col, err := s.ident(f.Field)
		if err != nil {
			return "", nil, err
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(col + " = ?")
		args = append(args, f.Value)
	}

	for i, ord := range q.Ordering {
		col, err := s.ident(ord.Field)
		if err != nil {
			return "", nil, err
		}
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return s.db.Rebind(sb.String()), args, nil
}

func (s *Store) Query(ctx context.Context, table string, q core.Query) ([]core.Row, error) {
	query, args, err := s.buildSelect(table, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make([]core.Row, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, errors.Wrap(err, "scanning row")
		}
		result = append(result, normalize(row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) buildInsert(table string, e entity.Entity) (string, error) {
	tbl, err := s.ident(table)
	if err != nil {
		return "", err
	}
	cols := entity.Columns(e)
	names := make([]string, len(cols))
	binds := make([]string, len(cols))
	for i, c := range cols {
		if names[i], err = s.ident(c); err != nil {
			return "", err
		}
		binds[i] = ":" + c
	}
	return "INSERT INTO " + tbl + " (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(binds, ", ") + ")", nil
}

func (s *Store) Insert(ctx context.Context, table string, e entity.Entity) error {
	query, err := s.buildInsert(table, e)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, query, e)
	return err
}

// normalize turns driver byte slices into strings so rows survive a JSON round trip.
func normalize(row map[string]interface{}) core.Row {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return core.Row(row)
}
