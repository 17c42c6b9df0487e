package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"deal_proforma/pkg/core/waterfall"
)

// pgQuerier is satisfied by both the pool and a transaction.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGLedger stores waterfall state in Postgres. Amounts are NUMERIC and travel as text so
// no value passes through a float.
type PGLedger struct {
	pool *pgxpool.Pool
}

// NewPGLedger wraps an initialized pool.
func NewPGLedger(pool *pgxpool.Pool) *PGLedger {
	return &PGLedger{pool: pool}
}

// Migrate creates the ledger tables if they do not exist.
func (l *PGLedger) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS wf_projects (
			id              TEXT PRIMARY KEY,
			last_event_at   TIMESTAMPTZ,
			accrued_through TIMESTAMPTZ,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS wf_investors (
			project_id          TEXT NOT NULL REFERENCES wf_projects(id) ON DELETE CASCADE,
			id                  TEXT NOT NULL,
			position            INTEGER NOT NULL,
			name                TEXT NOT NULL DEFAULT '',
			role                TEXT NOT NULL,
			capital_contributed NUMERIC(18,2) NOT NULL,
			holding_pct         NUMERIC(9,4) NOT NULL,
			outstanding_capital NUMERIC(18,2) NOT NULL,
			accrued_preferred   NUMERIC(18,2) NOT NULL,
			PRIMARY KEY (project_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS wf_distributions (
			seq        BIGSERIAL,
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES wf_projects(id) ON DELETE CASCADE,
			event_id   TEXT NOT NULL,
			source     TEXT NOT NULL,
			amount     NUMERIC(18,2) NOT NULL,
			strategy   TEXT NOT NULL,
			at         TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (project_id, event_id)
		)`,
		`CREATE TABLE IF NOT EXISTS wf_distribution_lines (
			distribution_id TEXT NOT NULL REFERENCES wf_distributions(id) ON DELETE CASCADE,
			position        INTEGER NOT NULL,
			investor_id     TEXT NOT NULL,
			preferred_paid  NUMERIC(18,2) NOT NULL,
			principal_paid  NUMERIC(18,2) NOT NULL,
			profit_paid     NUMERIC(18,2) NOT NULL,
			PRIMARY KEY (distribution_id, investor_id)
		)`,
	}
	for _, s := range stmts {
		if _, err := l.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveState replaces a project's investors and high-water marks.
func (l *PGLedger) SaveState(ctx context.Context, state waterfall.State) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := pgWriteState(ctx, tx, state); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// LoadState reads a project's investors in their stored order.
func (l *PGLedger) LoadState(ctx context.Context, projectID string) (waterfall.State, error) {
	return pgLoadState(ctx, l.pool, projectID, false)
}

// Update locks the project row, applies fn and writes its result in one transaction.
func (l *PGLedger) Update(ctx context.Context, projectID string, fn UpdateFunc) (*waterfall.Distribution, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	state, err := pgLoadState(ctx, tx, projectID, true)
	if err != nil {
		return nil, err
	}

	dist, next, err := fn(state)
	if err != nil {
		return nil, err
	}
	next.ProjectID = projectID

	if dist != nil {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM wf_distributions WHERE project_id = $1 AND event_id = $2)`,
			projectID, dist.EventID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check event: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEvent, dist.EventID)
		}
		if err := pgInsertDistribution(ctx, tx, dist); err != nil {
			return nil, err
		}
	}

	if err := pgWriteState(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return dist, nil
}

// ListDistributions returns a project's distributions oldest first.
func (l *PGLedger) ListDistributions(ctx context.Context, projectID string) ([]*waterfall.Distribution, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, event_id, source, amount::text, strategy, at
		FROM wf_distributions
		WHERE project_id = $1
		ORDER BY at, seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}
	defer rows.Close()

	var out []*waterfall.Distribution
	byID := make(map[string]*waterfall.Distribution)
	for rows.Next() {
		d := &waterfall.Distribution{ProjectID: projectID}
		var source, amount string
		var at time.Time
		if err := rows.Scan(&d.ID, &d.EventID, &source, &amount, &d.Strategy, &at); err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		d.Source = waterfall.Source(source)
		d.At = at.UTC()
		if d.Amount, err = parseDecimal("amount", amount); err != nil {
			return nil, err
		}
		out = append(out, d)
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	lines, err := l.pool.Query(ctx, `
		SELECT l.distribution_id, l.investor_id, l.preferred_paid::text, l.principal_paid::text, l.profit_paid::text
		FROM wf_distribution_lines l
		JOIN wf_distributions d ON d.id = l.distribution_id
		WHERE d.project_id = $1
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
func (l *PGLedger) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := l.pool.Query(ctx, `SELECT id FROM wf_projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Close is a no-op; the pool is owned by the package-level InitDB/Close pair.
func (l *PGLedger) Close() error { return nil }

func pgLoadState(ctx context.Context, q pgQuerier, projectID string, lock bool) (waterfall.State, error) {
	query := `SELECT last_event_at, accrued_through FROM wf_projects WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var lastEvent, accrued *time.Time
	if err := q.QueryRow(ctx, query, projectID).Scan(&lastEvent, &accrued); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return waterfall.State{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return waterfall.State{}, fmt.Errorf("load project: %w", err)
	}
	state := waterfall.State{
		ProjectID:      projectID,
		LastEventAt:    fromNullTime(lastEvent),
		AccruedThrough: fromNullTime(accrued),
	}

	rows, err := q.Query(ctx, `
		SELECT id, name, role, capital_contributed::text, holding_pct::text,
		       outstanding_capital::text, accrued_preferred::text
		FROM wf_investors
		WHERE project_id = $1
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

func pgWriteState(ctx context.Context, q pgQuerier, state waterfall.State) error {
	_, err := q.Exec(ctx, `
		INSERT INTO wf_projects (id, last_event_at, accrued_through, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			last_event_at = EXCLUDED.last_event_at,
			accrued_through = EXCLUDED.accrued_through,
			updated_at = EXCLUDED.updated_at`,
		state.ProjectID, nullTime(state.LastEventAt), nullTime(state.AccruedThrough))
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}

	if _, err := q.Exec(ctx, `DELETE FROM wf_investors WHERE project_id = $1`, state.ProjectID); err != nil {
		return fmt.Errorf("clear investors: %w", err)
	}
	for i, inv := range state.Investors {
		_, err := q.Exec(ctx, `
			INSERT INTO wf_investors (
				project_id, id, position, name, role,
				capital_contributed, holding_pct, outstanding_capital, accrued_preferred
			) VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric, $8::text::numeric, $9::text::numeric)`,
			state.ProjectID, inv.ID, i, inv.Name, string(inv.Role),
			inv.CapitalContributed.String(), inv.HoldingPct.String(),
			inv.OutstandingCapital.String(), inv.AccruedPreferred.String())
		if err != nil {
			return fmt.Errorf("save investor %s: %w", inv.ID, err)
		}
	}
	return nil
}

func pgInsertDistribution(ctx context.Context, q pgQuerier, d *waterfall.Distribution) error {
	_, err := q.Exec(ctx, `
		INSERT INTO wf_distributions (id, project_id, event_id, source, amount, strategy, at)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7)`,
		d.ID, d.ProjectID, d.EventID, string(d.Source), d.Amount.String(), d.Strategy, d.At.UTC())
	if err != nil {
		return fmt.Errorf("save distribution: %w", err)
	}
	for i, line := range d.Lines {
		_, err := q.Exec(ctx, `
			INSERT INTO wf_distribution_lines (
				distribution_id, position, investor_id, preferred_paid, principal_paid, profit_paid
			) VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6::text::numeric)`,
			d.ID, i, line.InvestorID,
			line.PreferredPaid.String(), line.PrincipalPaid.String(), line.ProfitPaid.String())
		if err != nil {
			return fmt.Errorf("save distribution line: %w", err)
		}
	}
	return nil
}
