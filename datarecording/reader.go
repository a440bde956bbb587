package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Filter narrows the rows a Reader returns. Zero values mean no bound.
type Filter struct {
	FromTick uint64
	ToTick   uint64
	Kind     string
	Limit    int
}

// Summary is an overview of one recorded run.
type Summary struct {
	Steps        int
	Ticks        int
	LastTick     uint64
	Boundaries   map[string]int
	Degradations map[string]int
}

// Reader reads back a recording written by the SQLite recorder.
type Reader struct {
	db *sqlx.DB
}

// OpenReader opens a recording file.
func OpenReader(filename string) (*Reader, error) {
	db, err := sqlx.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("datarecording: open %s: %w", filename, err)
	}

	return newReader(db), nil
}

// NewReaderWithDB creates a reader on an open database.
func NewReaderWithDB(db *sql.DB) *Reader {
	return newReader(sqlx.NewDb(db, "sqlite3"))
}

func newReader(db *sqlx.DB) *Reader {
	// Columns are named exactly like the record fields.
	db.MapperFunc(func(s string) string { return s })

	return &Reader{db: db}
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Tables lists the tables in the recording, sorted.
func (r *Reader) Tables(ctx context.Context) ([]string, error) {
	var names []string

	err := r.db.SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("datarecording: list tables: %w", err)
	}

	return names, nil
}

// Boundaries returns recorded boundaries in tick order.
func (r *Reader) Boundaries(
	ctx context.Context,
	f Filter,
) ([]BoundaryRecord, error) {
	var out []BoundaryRecord

	err := r.selectFiltered(ctx, &out, BoundaryTableName, "Tick", f)

	return out, err
}

// Degradations returns recorded degradation events in tick order.
func (r *Reader) Degradations(
	ctx context.Context,
	f Filter,
) ([]DegradationRecord, error) {
	var out []DegradationRecord

	err := r.selectFiltered(ctx, &out, DegradationTableName, "Tick", f)

	return out, err
}

// Steps returns step summaries ordered by their last tick. Filter.Kind is
// ignored.
func (r *Reader) Steps(ctx context.Context, f Filter) ([]StepRecord, error) {
	var out []StepRecord

	f.Kind = ""
	err := r.selectFiltered(ctx, &out, StepTableName, "LastTick", f)

	return out, err
}

// RunInfo returns the properties written by an ExecRecorder.
func (r *Reader) RunInfo(ctx context.Context) ([]ExecInfo, error) {
	var out []ExecInfo

	err := r.db.SelectContext(ctx, &out,
		`SELECT * FROM `+ExecTableName+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("datarecording: read %s: %w", ExecTableName, err)
	}

	return out, nil
}

// Summary counts steps, ticks, boundaries and degradations.
func (r *Reader) Summary(ctx context.Context) (Summary, error) {
	var steps struct {
		Steps    int
		Ticks    int
		LastTick uint64
	}

	err := r.db.GetContext(ctx, &steps, `SELECT
		COUNT(*) AS Steps,
		COALESCE(SUM(Ticks), 0) AS Ticks,
		COALESCE(MAX(LastTick), 0) AS LastTick
		FROM `+StepTableName)
	if err != nil {
		return Summary{}, fmt.Errorf("datarecording: summarize steps: %w", err)
	}

	s := Summary{
		Steps:    steps.Steps,
		Ticks:    steps.Ticks,
		LastTick: steps.LastTick,
	}

	if s.Boundaries, err = r.countByKind(ctx, BoundaryTableName); err != nil {
		return Summary{}, err
	}

	if s.Degradations, err = r.countByKind(ctx, DegradationTableName); err != nil {
		return Summary{}, err
	}

	return s, nil
}

func (r *Reader) countByKind(
	ctx context.Context,
	table string,
) (map[string]int, error) {
	var rows []struct {
		Kind string
		N    int
	}

	err := r.db.SelectContext(ctx, &rows,
		`SELECT Kind, COUNT(*) AS N FROM `+table+` GROUP BY Kind`)
	if err != nil {
		return nil, fmt.Errorf("datarecording: count %s: %w", table, err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row.N
	}

	return counts, nil
}

func (r *Reader) selectFiltered(
	ctx context.Context,
	dest any,
	table, tickCol string,
	f Filter,
) error {
	var (
		conds []string
		args  []any
	)

	if f.FromTick > 0 {
		conds = append(conds, tickCol+" >= ?")
		args = append(args, f.FromTick)
	}

	if f.ToTick > 0 {
		conds = append(conds, tickCol+" <= ?")
		args = append(args, f.ToTick)
	}

	if f.Kind != "" {
		conds = append(conds, "Kind = ?")
		args = append(args, f.Kind)
	}

	query := "SELECT * FROM " + table
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	query += " ORDER BY " + tickCol + ", rowid"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	if err := r.db.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("datarecording: read %s: %w", table, err)
	}

	return nil
}
