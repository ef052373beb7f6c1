package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledger/internal/core"
)

const groupColumns = `id, name, description, created_by, split_method, currency, member_count,
	total_expenses, total_cents, last_activity, invite_code, created_at, updated_at`

// CreateGroup inserts g with its roster. A duplicate invite code returns
// ErrInviteCodeTaken so the caller can draw a new one.
func (r *SQLiteRepository) CreateGroup(ctx context.Context, g *core.Group) error {
	if g.ID == "" {
		g.ID = newID()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO expense_groups (`+groupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, g.CreatedBy, string(g.Settings.SplitMethod),
		g.Settings.Currency, g.Stats.MemberCount, g.Stats.TotalExpenses,
		g.Stats.TotalAmount.Cents, formatTime(g.Stats.LastActivity), g.InviteCode,
		formatTime(g.CreatedAt), formatTime(g.UpdatedAt),
	)
	if isUniqueViolation(err, "expense_groups.invite_code") {
		return fmt.Errorf("%w: %s", ErrInviteCodeTaken, g.InviteCode)
	}
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	if err := upsertMembers(ctx, tx, g); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group: %w", err)
	}
	return nil
}

// SaveGroup writes the settings and roster of an existing group in one
// transaction. Expense totals are owned by CreateGroupExpense and
// SoftDeleteGroupExpense and are left untouched.
func (r *SQLiteRepository) SaveGroup(ctx context.Context, g core.Group) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE expense_groups SET
			name = ?, description = ?, split_method = ?, currency = ?, member_count = ?, updated_at = ?
		WHERE id = ?`,
		g.Name, g.Description, string(g.Settings.SplitMethod), g.Settings.Currency,
		g.Stats.MemberCount, formatTime(g.UpdatedAt), g.ID,
	)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if err := expectOne(res, "group", g.ID); err != nil {
		return err
	}

	if err := upsertMembers(ctx, tx, &g); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group: %w", err)
	}
	return nil
}

func upsertMembers(ctx context.Context, tx *sql.Tx, g *core.Group) error {
	for i, m := range g.Members {
		_, err := tx.ExecContext(ctx, `INSERT INTO group_members (group_id, position, user_id, role, joined_at, is_active)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (group_id, user_id) DO UPDATE SET
				position = excluded.position, role = excluded.role,
				joined_at = excluded.joined_at, is_active = excluded.is_active`,
			g.ID, i, m.UserID, string(m.Role), formatTime(m.JoinedAt), boolToInt(m.IsActive),
		)
		if err != nil {
			return fmt.Errorf("upsert group member %s: %w", m.UserID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) GetGroup(ctx context.Context, id string) (core.Group, error) {
	return getGroup(ctx, r.db, "id", id)
}

func (r *SQLiteRepository) GetGroupByInviteCode(ctx context.Context, code string) (core.Group, error) {
	return getGroup(ctx, r.db, "invite_code", code)
}

func getGroup(ctx context.Context, q dbtx, column, value string) (core.Group, error) {
	var (
		g                    core.Group
		method, lastActivity string
		createdAt, updatedAt string
		totalCents           int64
	)
	err := q.QueryRowContext(ctx, "SELECT "+groupColumns+" FROM expense_groups WHERE "+column+" = ?", value).Scan(
		&g.ID, &g.Name, &g.Description, &g.CreatedBy, &method, &g.Settings.Currency,
		&g.Stats.MemberCount, &g.Stats.TotalExpenses, &totalCents, &lastActivity,
		&g.InviteCode, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Group{}, fmt.Errorf("group %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return core.Group{}, fmt.Errorf("get group: %w", err)
	}

	g.Settings.SplitMethod = core.SplitMethod(method)
	g.Stats.TotalAmount = core.NewMoney(totalCents, g.Settings.Currency)
	if g.Stats.LastActivity, err = parseTime(lastActivity); err != nil {
		return core.Group{}, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Group{}, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Group{}, err
	}

	rows, err := q.QueryContext(ctx,
		"SELECT user_id, role, joined_at, is_active FROM group_members WHERE group_id = ? ORDER BY position", g.ID)
	if err != nil {
		return core.Group{}, fmt.Errorf("get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m              core.Member
			role, joinedAt string
			active         int
		)
		if err := rows.Scan(&m.UserID, &role, &joinedAt, &active); err != nil {
			return core.Group{}, fmt.Errorf("scan group member: %w", err)
		}
		m.Role = core.Role(role)
		m.IsActive = active != 0
		if m.JoinedAt, err = parseTime(joinedAt); err != nil {
			return core.Group{}, err
		}
		g.Members = append(g.Members, m)
	}
	if err := rows.Err(); err != nil {
		return core.Group{}, fmt.Errorf("iterate group members: %w", err)
	}
	return g, nil
}
