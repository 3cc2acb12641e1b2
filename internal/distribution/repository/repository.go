package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/internal/distribution/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

var _ ports.Store = (*Repository)(nil)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const groupColumns = `id, organization_id, name, distribution_policy, claim_window_minutes, rotation_cursor,
	default_user_id, default_group_id, default_pond_id, created_at, updated_at`

const leadColumns = `id, organization_id, consumer_name, assigned_user_id, assigned_pond_id,
	available_for_group_id, claim_expires_at, escalation_hops, created_at, updated_at`

func (r *Repository) GetGroup(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	return loadGroup(ctx, r.pool, id, false)
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ports.ErrNotFound
	}
	return lead, err
}

func (r *Repository) InGroupTx(ctx context.Context, fn func(ctx context.Context, tx ports.GroupTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &groupTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) ReserveLead(ctx context.Context, leadID uuid.UUID, res domain.Reservation, now time.Time) (ports.ReserveResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ports.ReserveResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lead, err := scanLead(tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.ReserveResult{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.ReserveResult{}, err
	}

	var result ports.ReserveResult
	if current, open := lead.Reservation(); open {
		if current.GroupID == res.GroupID && !current.Expired(now) {
			return ports.ReserveResult{Lead: lead, AlreadyOpen: true}, nil
		}
		if current.GroupID != res.GroupID {
			superseded := current
			result.Superseded = &superseded
		}
	}

	updated, err := scanLead(tx.QueryRow(ctx, `
		UPDATE leads
		SET available_for_group_id = $2,
			claim_expires_at = $3,
			assigned_user_id = NULL,
			assigned_pond_id = NULL,
			updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns, leadID, res.GroupID, res.ExpiresAt))
	if err != nil {
		return ports.ReserveResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ports.ReserveResult{}, err
	}

	result.Lead = updated
	return result, nil
}

func (r *Repository) ClaimLead(ctx context.Context, leadID, groupID, userID uuid.UUID, now time.Time) (domain.Lead, bool, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET assigned_user_id = $3,
			assigned_pond_id = NULL,
			available_for_group_id = NULL,
			claim_expires_at = NULL,
			escalation_hops = 0,
			updated_at = now()
		WHERE id = $1
			AND available_for_group_id = $2
			AND claim_expires_at >= $4
		RETURNING `+leadColumns, leadID, groupID, userID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, false, nil
	}
	if err != nil {
		return domain.Lead{}, false, err
	}
	return lead, true, nil
}

func (r *Repository) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE available_for_group_id IS NOT NULL
			AND claim_expires_at < $1
		ORDER BY claim_expires_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Repository) CloseReservation(ctx context.Context, leadID uuid.UUID, res domain.Reservation, c ports.Closure) (domain.Lead, bool, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET available_for_group_id = NULL,
			claim_expires_at = NULL,
			assigned_user_id = $4,
			assigned_pond_id = $5,
			escalation_hops = CASE WHEN $6::boolean THEN escalation_hops + 1 ELSE 0 END,
			updated_at = now()
		WHERE id = $1
			AND available_for_group_id = $2
			AND claim_expires_at = $3
		RETURNING `+leadColumns, leadID, res.GroupID, res.ExpiresAt, c.AssignUserID, c.AssignPondID, c.CountEscalationHop))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, false, nil
	}
	if err != nil {
		return domain.Lead{}, false, err
	}
	return lead, true, nil
}

func (r *Repository) UpdateGroupSettings(ctx context.Context, s ports.GroupSettings) (domain.Group, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Group{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE lead_groups
		SET name = COALESCE(NULLIF($2, ''), name),
			distribution_policy = $3,
			claim_window_minutes = $4,
			default_user_id = $5,
			default_group_id = $6,
			default_pond_id = $7,
			updated_at = now()
		WHERE id = $1
	`, s.GroupID, s.Name, string(s.Policy), s.ClaimWindowMinutes, s.DefaultUserID, s.DefaultGroupID, s.DefaultPondID)
	if err != nil {
		return domain.Group{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Group{}, ports.ErrNotFound
	}

	if err := replaceMembers(ctx, tx, s.GroupID, s.Members); err != nil {
		return domain.Group{}, err
	}

	group, err := loadGroup(ctx, tx, s.GroupID, false)
	if err != nil {
		return domain.Group{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

// UpsertGroup writes a group with its members, keeping the stored rotation
// cursor when the group already exists. Used by the seed command.
func (r *Repository) UpsertGroup(ctx context.Context, g domain.Group) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO lead_groups (id, organization_id, name, distribution_policy, claim_window_minutes,
			rotation_cursor, default_user_id, default_group_id, default_pond_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			distribution_policy = EXCLUDED.distribution_policy,
			claim_window_minutes = EXCLUDED.claim_window_minutes,
			default_user_id = EXCLUDED.default_user_id,
			default_pond_id = EXCLUDED.default_pond_id,
			updated_at = now()
	`, g.ID, g.OrganizationID, g.Name, string(g.Policy), g.ClaimWindowMinutes, domain.InitialRotationCursor,
		g.DefaultUserID, g.DefaultPondID)
	if err != nil {
		return err
	}
	if err := replaceMembers(ctx, tx, g.ID, g.Members); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LinkDefaultGroup sets the default-group link after all groups exist.
func (r *Repository) LinkDefaultGroup(ctx context.Context, groupID uuid.UUID, defaultGroupID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lead_groups SET default_group_id = $2, updated_at = now() WHERE id = $1
	`, groupID, defaultGroupID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// UpsertPond creates or renames a pond.
func (r *Repository) UpsertPond(ctx context.Context, id, organizationID uuid.UUID, name string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_ponds (id, organization_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, id, organizationID, name)
	return err
}

type groupTx struct {
	tx pgx.Tx
}

func (t *groupTx) LockGroup(ctx context.Context, groupID uuid.UUID) (domain.Group, error) {
	return loadGroup(ctx, t.tx, groupID, true)
}

func (t *groupTx) SetRotationCursor(ctx context.Context, groupID uuid.UUID, cursor int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE lead_groups SET rotation_cursor = $2, updated_at = now() WHERE id = $1
	`, groupID, cursor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (t *groupTx) AssignLeadToUser(ctx context.Context, observed domain.Lead, userID uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(t.tx.QueryRow(ctx, `
		UPDATE leads
		SET assigned_user_id = $2,
			assigned_pond_id = NULL,
			available_for_group_id = NULL,
			claim_expires_at = NULL,
			escalation_hops = 0,
			updated_at = now()
		WHERE id = $1
			AND assigned_user_id IS NOT DISTINCT FROM $3
			AND assigned_pond_id IS NOT DISTINCT FROM $4
			AND available_for_group_id IS NOT DISTINCT FROM $5
			AND claim_expires_at IS NOT DISTINCT FROM $6
		RETURNING `+leadColumns,
		observed.ID, userID,
		observed.AssignedUserID, observed.AssignedPondID,
		observed.AvailableForGroupID, observed.ClaimExpiresAt,
	))
	if !errors.Is(err, pgx.ErrNoRows) {
		return lead, err
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, observed.ID).Scan(&exists); err != nil {
		return domain.Lead{}, err
	}
	if !exists {
		return domain.Lead{}, ports.ErrNotFound
	}
	return domain.Lead{}, ports.ErrLeadChanged
}

func loadGroup(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (domain.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM lead_groups WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		g      domain.Group
		policy string
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&g.ID, &g.OrganizationID, &g.Name, &policy, &g.ClaimWindowMinutes, &g.RotationCursor,
		&g.DefaultUserID, &g.DefaultGroupID, &g.DefaultPondID, &g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Group{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Group{}, err
	}
	g.Policy = domain.Policy(policy)

	rows, err := q.Query(ctx, `
		SELECT user_id FROM lead_group_members
		WHERE group_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return domain.Group{}, err
	}
	defer rows.Close()

	g.Members = make([]uuid.UUID, 0)
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return domain.Group{}, err
		}
		g.Members = append(g.Members, userID)
	}
	if rows.Err() != nil {
		return domain.Group{}, rows.Err()
	}
	return g, nil
}

func replaceMembers(ctx context.Context, tx pgx.Tx, groupID uuid.UUID, members []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM lead_group_members WHERE group_id = $1`, groupID); err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, userID := range members {
		batch.Queue(`INSERT INTO lead_group_members (group_id, user_id, position) VALUES ($1, $2, $3)`, groupID, userID, i)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	err := row.Scan(
		&l.ID, &l.OrganizationID, &l.ConsumerName, &l.AssignedUserID, &l.AssignedPondID,
		&l.AvailableForGroupID, &l.ClaimExpiresAt, &l.EscalationHops, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}
