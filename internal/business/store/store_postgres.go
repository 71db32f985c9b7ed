package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"bizreg/internal/business/models"
	"bizreg/internal/business/query"
	"bizreg/pkg/platform/sentinel"
	"bizreg/pkg/platform/tx"
)

const uniqueViolation = "23505"

const businessColumns = `id, firstname, middlename, lastname, business_name, address, status, control_number, created_at, updated_at`

var fieldColumns = map[query.Field]string{
	query.FieldFirstname:     "firstname",
	query.FieldMiddlename:    "middlename",
	query.FieldLastname:      "lastname",
	query.FieldBusinessName:  "business_name",
	query.FieldAddress:       "address",
	query.FieldControlNumber: "control_number",
}

// PostgresStore persists business records in PostgreSQL. It is pure I/O;
// control-number allocation lives in the sequence package.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed business store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, rec *models.BusinessRecord) error {
	if rec == nil {
		return fmt.Errorf("business record is required")
	}
	if rec.ID.IsNil() {
		rec.ID = models.NewBusinessID()
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	rec.CreatedAt = rec.CreatedAt.Truncate(time.Microsecond)
	rec.UpdatedAt = rec.UpdatedAt.Truncate(time.Microsecond)

	stmt := `
		INSERT INTO businesses (` + businessColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, stmt,
		rec.ID.String(),
		rec.Firstname,
		rec.Middlename,
		rec.Lastname,
		rec.BusinessName,
		rec.Address,
		string(rec.Status),
		rec.ControlNumber,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert business %s: %w", rec.ControlNumber, sentinel.ErrConflict)
		}
		return unavailable("insert business", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id models.BusinessID) (*models.BusinessRecord, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id.String())
	rec, err := scanBusiness(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, unavailable("find business by id", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindByControlNumber(ctx context.Context, controlNumber string) (*models.BusinessRecord, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE control_number = $1`, controlNumber)
	rec, err := scanBusiness(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, unavailable("find business by control number", err)
	}
	return rec, nil
}

// Update writes the mutable columns. control_number and created_at are never
// part of the SET list.
func (s *PostgresStore) Update(ctx context.Context, rec *models.BusinessRecord) error {
	if rec == nil {
		return fmt.Errorf("business record is required")
	}
	rec.UpdatedAt = rec.UpdatedAt.Truncate(time.Microsecond)
	stmt := `
		UPDATE businesses SET
			firstname = $2,
			middlename = $3,
			lastname = $4,
			business_name = $5,
			address = $6,
			status = $7,
			updated_at = $8
		WHERE id = $1
	`
	result, err := tx.Exec(ctx, s.db).ExecContext(ctx, stmt,
		rec.ID.String(),
		rec.Firstname,
		rec.Middlename,
		rec.Lastname,
		rec.BusinessName,
		rec.Address,
		string(rec.Status),
		rec.UpdatedAt,
	)
	if err != nil {
		return unavailable("update business", err)
	}
	return requireAffected(result, "update business")
}

func (s *PostgresStore) Delete(ctx context.Context, id models.BusinessID) error {
	result, err := tx.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM businesses WHERE id = $1`, id.String())
	if err != nil {
		return unavailable("delete business", err)
	}
	return requireAffected(result, "delete business")
}

// Find returns matching records ordered by sort, then insertion order.
// A limit of 0 returns every record after offset.
func (s *PostgresStore) Find(ctx context.Context, f query.Filter, sort query.Sort, offset, limit int) ([]*models.BusinessRecord, error) {
	where, args := buildWhere(f)
	var b strings.Builder
	b.WriteString(`SELECT ` + businessColumns + ` FROM businesses`)
	b.WriteString(where)
	b.WriteString(orderBy(sort))
	if limit > 0 {
		args = append(args, limit)
		b.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	if offset > 0 {
		args = append(args, offset)
		b.WriteString(` OFFSET $` + strconv.Itoa(len(args)))
	}

	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, unavailable("find businesses", err)
	}
	defer rows.Close()

	out := []*models.BusinessRecord{}
	for rows.Next() {
		rec, err := scanBusiness(rows)
		if err != nil {
			return nil, unavailable("scan business", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate businesses", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context, f query.Filter) (int, error) {
	where, args := buildWhere(f)
	var n int
	if err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM businesses`+where, args...).Scan(&n); err != nil {
		return 0, unavailable("count businesses", err)
	}
	return n, nil
}

// CountBy groups matching records by a derived key. Control numbers without
// a four-digit year prefix are left out of year groups.
func (s *PostgresStore) CountBy(ctx context.Context, f query.Filter, key query.GroupKey) (map[string]int, error) {
	var expr string
	switch key {
	case query.GroupStatus:
		expr = `status`
	case query.GroupYear:
		expr = `CASE WHEN control_number ~ '^[0-9]{4}-' THEN LEFT(control_number, 4) ELSE '' END`
	default:
		return nil, fmt.Errorf("unsupported group key %q", key)
	}
	where, args := buildWhere(f)
	q := `SELECT ` + expr + ` AS k, COUNT(*) FROM businesses` + where + ` GROUP BY k`

	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable("group businesses", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, unavailable("scan group", err)
		}
		if k != "" {
			counts[k] = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate groups", err)
	}
	return counts, nil
}

// buildWhere compiles a Filter into a WHERE clause with positional args.
// Substring search uses position() on lowered text so user input is never
// interpreted as a pattern.
func buildWhere(f query.Filter) (string, []any) {
	var clauses []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Search != "" {
		p := arg(f.Search)
		var ors []string
		for _, field := range f.Fields() {
			col, ok := fieldColumns[field]
			if !ok {
				continue
			}
			if f.ExactMatch {
				ors = append(ors, col+" = "+p)
			} else {
				ors = append(ors, "position(lower("+p+") in lower("+col+")) > 0")
			}
		}
		if len(ors) > 0 {
			clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
		}
	}
	if prefix := f.YearPrefix(); prefix != "" {
		clauses = append(clauses, "control_number LIKE "+arg(prefix+"%"))
	}
	if f.Status != "" {
		clauses = append(clauses, "status = "+arg(string(f.Status)))
	}
	if f.CreatedFrom != nil {
		clauses = append(clauses, "created_at >= "+arg(*f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		clauses = append(clauses, "created_at <= "+arg(*f.CreatedTo))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// orderBy mirrors query.Sort.Compare: byte-wise text ordering and
// numeric-aware control numbers, ties broken by insertion order.
func orderBy(s query.Sort) string {
	dir := " ASC"
	if s.Desc {
		dir = " DESC"
	}
	var keys []string
	switch s.Field {
	case query.SortBusinessName:
		keys = []string{`business_name COLLATE "C"` + dir}
	case query.SortLastname:
		keys = []string{`lastname COLLATE "C"` + dir}
	case query.SortControlNumber:
		keys = []string{
			`LEFT(control_number, 4) COLLATE "C"` + dir,
			`LENGTH(control_number)` + dir,
			`control_number COLLATE "C"` + dir,
		}
	default:
		keys = []string{`created_at` + dir}
	}
	keys = append(keys, "seq ASC")
	return " ORDER BY " + strings.Join(keys, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBusiness(row rowScanner) (*models.BusinessRecord, error) {
	var rec models.BusinessRecord
	var id, status string
	if err := row.Scan(&id, &rec.Firstname, &rec.Middlename, &rec.Lastname, &rec.BusinessName,
		&rec.Address, &status, &rec.ControlNumber, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseBusinessID(id)
	if err != nil {
		return nil, fmt.Errorf("stored business id %q: %w", id, err)
	}
	rec.ID = parsed
	rec.Status = models.Status(status)
	return &rec, nil
}

func requireAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return unavailable(op+" rows affected", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}
