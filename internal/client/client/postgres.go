package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/ledgermail/internal/client/models"
	"github.com/dmitrijs2005/ledgermail/internal/common"
	"github.com/dmitrijs2005/ledgermail/internal/dbx"
	"github.com/dmitrijs2005/ledgermail/internal/logging"
)

const setClaimsSQL = `SELECT set_config('request.jwt.claims', $1, true)`

// ClaimsFunc returns the JSON claims of the signed-in user, or "" when
// nobody is signed in.
type ClaimsFunc func() string

// Postgres implements Remote on a database/sql handle opened with the pgx
// driver.
type Postgres struct {
	db     *sql.DB
	claims ClaimsFunc
	logger logging.Logger
}

var _ Remote = (*Postgres)(nil)

func NewPostgres(db *sql.DB, claims ClaimsFunc, logger logging.Logger) *Postgres {
	if claims == nil {
		claims = func() string { return "" }
	}
	return &Postgres{db: db, claims: claims, logger: logger}
}

// run executes fn in a transaction scoped to the caller's claims.
func (p *Postgres) run(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if claims := p.claims(); claims != "" {
			if _, err := tx.ExecContext(ctx, setClaimsSQL, claims); err != nil {
				return err
			}
		}
		return fn(ctx, tx)
	})
	return mapError(err)
}

func (p *Postgres) query(ctx context.Context, q string, args ...any) ([]models.Row, error) {
	var out []models.Row
	err := p.run(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		rows, err := tx.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out, err = scanRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) ListMyOrgs(ctx context.Context) ([]models.Row, error) {
	return p.query(ctx, `SELECT * FROM list_my_orgs()`)
}

func (p *Postgres) Select(ctx context.Context, q Query) ([]models.Row, error) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(pgx.Identifier{q.Table}.Sanitize())
	b.WriteString(" WHERE ")
	b.WriteString(pgx.Identifier{q.Column}.Sanitize())
	b.WriteString(" = $1")
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(pgx.Identifier{q.OrderBy}.Sanitize())
		b.WriteString(" DESC")
	}
	b.WriteString(" LIMIT $2")

	p.logger.Debug(ctx, "select", "table", q.Table, "column", q.Column, "order", q.OrderBy, "limit", q.Limit)
	return p.query(ctx, b.String(), q.Value, q.Limit)
}

func (p *Postgres) ListAttachmentTree(ctx context.Context, scopeType, scopeID string, limit, offset int) ([]models.Row, error) {
	return p.query(ctx, `SELECT * FROM list_attachment_tree($1, $2, $3, $4)`, scopeType, scopeID, limit, offset)
}

// Insert writes one row; columns are emitted in sorted order.
func (p *Postgres) Insert(ctx context.Context, table string, row models.Row) error {
	if len(row) == 0 {
		return fmt.Errorf("insert into %s: empty row", table)
	}

	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	slices.Sort(cols)

	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		params[i] = "$" + strconv.Itoa(i+1)
		args[i] = row[c]
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(), strings.Join(quoted, ", "), strings.Join(params, ", "))

	return p.run(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, q, args...)
		return err
	})
}

func scanRows(rows *sql.Rows) ([]models.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []models.Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(models.Row, len(cols))
		for i, c := range cols {
			row[c] = normalize(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalize turns driver values into plain Go values.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case [16]byte:
		return uuid.UUID(t).String()
	default:
		return v
	}
}

// mapError tags service failures. The server message is kept as is.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28000", "28P01", "42501":
			return common.NewError(common.KindRemoteCallFailed, "", fmt.Errorf("%w (%w)", err, ErrUnauthorized))
		}
		return common.NewError(common.KindRemoteCallFailed, "", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, sql.ErrConnDone) {
		return common.NewError(common.KindRemoteCallFailed, "", fmt.Errorf("%w (%w)", err, ErrUnavailable))
	}
	return common.NewError(common.KindRemoteCallFailed, "", err)
}
