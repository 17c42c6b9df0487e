package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	_ "modernc.org/sqlite"

	"deal_proforma/pkg/core/waterfall"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteLedger stores waterfall state in a local SQLite file, for single-node deployments
// and tests. Amounts are stored as decimal text. The database is opened with one connection,
// which serializes every transaction in this process. The API and the worker may share the
// file: transactions take the write lock at BEGIN and wait up to BusyTimeoutMS for it.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (or creates) the database and runs migrations. Use ":memory:" for a
// throwaway ledger.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", BusyTimeoutMS),
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[LEDGER] sqlite ledger opened: %s", dbPath)
	return l, nil
}

// BusyTimeoutMS is how long a transaction waits for another process's write lock.
const BusyTimeoutMS = 5000

// sqliteDSN opens file databases with BEGIN IMMEDIATE transactions, so a read-modify-write
// waits for the lock up front instead of failing with SQLITE_BUSY when it upgrades.
func sqliteDSN(path string) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return path + "?_txlock=immediate"
}

func (l *SQLiteLedger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS wf_projects (
			id              TEXT PRIMARY KEY,
			last_event_at   TEXT NOT NULL DEFAULT '',
			accrued_through TEXT NOT NULL DEFAULT '',
			updated_at      TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS wf_investors (
			project_id          TEXT NOT NULL REFERENCES wf_projects(id) ON DELETE CASCADE,
			id                  TEXT NOT NULL,
			position            INTEGER NOT NULL,
			name                TEXT NOT NULL DEFAULT '',
			role                TEXT NOT NULL,
			capital_contributed TEXT NOT NULL,
			holding_pct         TEXT NOT NULL,
			outstanding_capital TEXT NOT NULL,
			accrued_preferred   TEXT NOT NULL,
			PRIMARY KEY (project_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS wf_distributions (
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES wf_projects(id) ON DELETE CASCADE,
			event_id   TEXT NOT NULL,
			source     TEXT NOT NULL,
			amount     TEXT NOT NULL,
			strategy   TEXT NOT NULL,
			at         TEXT NOT NULL,
			UNIQUE (project_id, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wf_distributions_project ON wf_distributions(project_id, at)`,
		`CREATE TABLE IF NOT EXISTS wf_distribution_lines (
			distribution_id TEXT NOT NULL REFERENCES wf_distributions(id) ON DELETE CASCADE,
			position        INTEGER NOT NULL,
			investor_id     TEXT NOT NULL,
			preferred_paid  TEXT NOT NULL,
			principal_paid  TEXT NOT NULL,
			profit_paid     TEXT NOT NULL,
			PRIMARY KEY (distribution_id, investor_id)
		)`,
	}

	for _, s := range stmts {
		if _, err := l.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// SaveState replaces a project's investors and high-water marks.
func (l *SQLiteLedger) SaveState(ctx context.Context, state waterfall.State) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := sqliteWriteState(ctx, tx, state); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// LoadState reads a project's investors in their stored order.
func (l *SQLiteLedger) LoadState(ctx context.Context, projectID string) (waterfall.State, error) {
	return sqliteLoadState(ctx, l.db, projectID)
}

// Update applies fn to the project's state and writes its result in one transaction.
func (l *SQLiteLedger) Update(ctx context.Context, projectID string, fn UpdateFunc) (*waterfall.Distribution, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	state, err := sqliteLoadState(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}

	dist, next, err := fn(state)
	if err != nil {
		return nil, err
	}
	next.ProjectID = projectID

	if dist != nil {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM wf_distributions WHERE project_id = ? AND event_id = ?`,
			projectID, dist.EventID).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("check event: %w", err)
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEvent, dist.EventID)
		}
		if err := sqliteInsertDistribution(ctx, tx, dist); err != nil {
			return nil, err
		}
	}

	if err := sqliteWriteState(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return dist, nil
}

// ListDistributions returns a project's distributions oldest first.
func (l *SQLiteLedger) ListDistributions(ctx context.Context, projectID string) ([]*waterfall.Distribution, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, event_id, source, amount, strategy, at
		FROM wf_distributions
		WHERE project_id = ?
		ORDER BY at, rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}

	var out []*waterfall.Distribution
	byID := make(map[string]*waterfall.Distribution)
	for rows.Next() {
		d := &waterfall.Distribution{ProjectID: projectID}
		var source, amount, at string
		if err := rows.Scan(&d.ID, &d.EventID, &source, &amount, &d.Strategy, &at); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		d.Source = waterfall.Source(source)
		if d.Amount, err = parseDecimal("amount", amount); err != nil {
			rows.Close()
			return nil, err
		}
		if d.At, err = parseTime(at); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode at: %w", err)
		}
		out = append(out, d)
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	lines, err := l.db.QueryContext(ctx, `
		SELECT l.distribution_id, l.investor_id, l.preferred_paid, l.principal_paid, l.profit_paid
		FROM wf_distribution_lines l
		JOIN wf_distributions d ON d.id = l.distribution_id
		WHERE d.project_id = ?
		ORDER BY l.distribution_id, l.position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list distribution lines: %w", err)
	}
	defer lines.Close()

	for lines.Next() {
		var distID, pref, principal, profit string
		var p waterfall.Payout
		if err := lines.Scan(&distID, &p.InvestorID, &pref, &principal, &profit); err != nil {
			return nil, fmt.Errorf("scan distribution line: %w", err)
		}
		if err := payoutFields(&p, pref, principal, profit); err != nil {
			return nil, err
		}
		if d, ok := byID[distID]; ok {
			d.Lines = append(d.Lines, p)
		}
	}
	return out, lines.Err()
}

// ListProjects returns every project with stored state.
func (l *SQLiteLedger) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id FROM wf_projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func sqliteLoadState(ctx context.Context, q sqlQuerier, projectID string) (waterfall.State, error) {
	var lastEvent, accrued string
	err := q.QueryRowContext(ctx,
		`SELECT last_event_at, accrued_through FROM wf_projects WHERE id = ?`, projectID).
		Scan(&lastEvent, &accrued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return waterfall.State{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return waterfall.State{}, fmt.Errorf("load project: %w", err)
	}

	state := waterfall.State{ProjectID: projectID}
	if state.LastEventAt, err = parseTime(lastEvent); err != nil {
		return waterfall.State{}, fmt.Errorf("decode last_event_at: %w", err)
	}
	if state.AccruedThrough, err = parseTime(accrued); err != nil {
		return waterfall.State{}, fmt.Errorf("decode accrued_through: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, name, role, capital_contributed, holding_pct, outstanding_capital, accrued_preferred
		FROM wf_investors
		WHERE project_id = ?
		ORDER BY position`, projectID)
	if err != nil {
		return waterfall.State{}, fmt.Errorf("load investors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inv waterfall.Investor
		var role, capital, holding, outstanding, accruedPref string
		if err := rows.Scan(&inv.ID, &inv.Name, &role, &capital, &holding, &outstanding, &accruedPref); err != nil {
			return waterfall.State{}, fmt.Errorf("scan investor: %w", err)
		}
		inv.Role = waterfall.Role(role)
		if err := investorFields(&inv, capital, holding, outstanding, accruedPref); err != nil {
			return waterfall.State{}, err
		}
		state.Investors = append(state.Investors, inv)
	}
	return state, rows.Err()
}

func sqliteWriteState(ctx context.Context, q sqlQuerier, state waterfall.State) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO wf_projects (id, last_event_at, accrued_through, updated_at)
		VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (id) DO UPDATE SET
			last_event_at = excluded.last_event_at,
			accrued_through = excluded.accrued_through,
			updated_at = excluded.updated_at`,
		state.ProjectID, formatTime(state.LastEventAt), formatTime(state.AccruedThrough))
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM wf_investors WHERE project_id = ?`, state.ProjectID); err != nil {
		return fmt.Errorf("clear investors: %w", err)
	}
	for i, inv := range state.Investors {
		_, err := q.ExecContext(ctx, `
			INSERT INTO wf_investors (
				project_id, id, position, name, role,
				capital_contributed, holding_pct, outstanding_capital, accrued_preferred
			) VALUES (?,?,?,?,?,?,?,?,?)`,
			state.ProjectID, inv.ID, i, inv.Name, string(inv.Role),
			inv.CapitalContributed.String(), inv.HoldingPct.String(),
			inv.OutstandingCapital.String(), inv.AccruedPreferred.String())
		if err != nil {
			return fmt.Errorf("save investor %s: %w", inv.ID, err)
		}
	}
	return nil
}

func sqliteInsertDistribution(ctx context.Context, q sqlQuerier, d *waterfall.Distribution) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO wf_distributions (id, project_id, event_id, source, amount, strategy, at)
		VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.ProjectID, d.EventID, string(d.Source), d.Amount.String(), d.Strategy, formatTime(d.At))
	if err != nil {
		return fmt.Errorf("save distribution: %w", err)
	}
	for i, line := range d.Lines {
		_, err := q.ExecContext(ctx, `
			INSERT INTO wf_distribution_lines (
				distribution_id, position, investor_id, preferred_paid, principal_paid, profit_paid
			) VALUES (?,?,?,?,?,?)`,
			d.ID, i, line.InvestorID,
			line.PreferredPaid.String(), line.PrincipalPaid.String(), line.ProfitPaid.String())
		if err != nil {
			return fmt.Errorf("save distribution line: %w", err)
		}
	}
	return nil
}
