package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/group"
	ledgerlog "ledger/internal/log"
	"ledger/internal/storage"
)

const maxInviteAttempts = 5

var (
	ErrNotAdmin  = errors.New("only group admins may do this")
	ErrLastAdmin = errors.New("the last admin cannot leave a group with other members")
)

// GroupService applies roster changes to stored groups. Changes to one group
// are serialized in-process; the roster is rewritten as a whole on save while
// expense totals stay with the expense path.
type GroupService struct {
	storage       *storage.SQLiteRepository
	defaults      core.Defaults
	newInviteCode func() (string, error)
	locks         sync.Map // group id -> *sync.Mutex
}

func NewGroupService(storage *storage.SQLiteRepository, defaults core.Defaults) *GroupService {
	return &GroupService{
		storage:       storage,
		defaults:      defaults,
		newInviteCode: group.GenerateInviteCode,
	}
}

func (s *GroupService) lock(groupID string) func() {
	m, _ := s.locks.LoadOrStore(groupID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateGroup creates a group with createdBy as its admin. A colliding
// invite code is redrawn a few times before giving up.
func (s *GroupService) CreateGroup(ctx context.Context, name, description, createdBy string, now time.Time) (core.Group, error) {
	for attempt := 1; attempt <= maxInviteAttempts; attempt++ {
		code, err := s.newInviteCode()
		if err != nil {
			return core.Group{}, err
		}
		g, err := core.NewGroup(name, createdBy, code, s.defaults, now)
		if err != nil {
			return core.Group{}, fmt.Errorf("validate group: %w", err)
		}
		g.Description = description

		err = s.storage.CreateGroup(ctx, &g)
		if errors.Is(err, storage.ErrInviteCodeTaken) {
			groupLogger(ctx).WarnContext(ctx, "Invite code collision, drawing a new one",
				ledgerlog.FieldAttempt, attempt)
			continue
		}
		if err != nil {
			return core.Group{}, err
		}

		groupLogger(ctx).InfoContext(ctx, "Group created",
			ledgerlog.FieldOperation, ledgerlog.OpCreate,
			ledgerlog.FieldGroupID, g.ID,
			ledgerlog.FieldUserID, createdBy)
		return g, nil
	}
	return core.Group{}, fmt.Errorf("create group after %d attempts: %w", maxInviteAttempts, storage.ErrInviteCodeTaken)
}

// Join adds userID as a member of the group owning inviteCode.
func (s *GroupService) Join(ctx context.Context, inviteCode, userID string, now time.Time) (core.Group, error) {
	g, err := s.storage.GetGroupByInviteCode(ctx, inviteCode)
	if err != nil {
		return core.Group{}, err
	}
	return s.update(ctx, g.ID, func(g core.Group) (core.Group, error) {
		g, _, err := group.AddMember(g, userID, core.RoleMember, now)
		return g, err
	})
}

// Leave removes userID from the group. The only admin of a group that still
// has other members has to promote someone first.
func (s *GroupService) Leave(ctx context.Context, groupID, userID string, now time.Time) (core.Group, error) {
	return s.update(ctx, groupID, func(g core.Group) (core.Group, error) {
		if group.IsAdmin(g, userID) && adminCount(g) == 1 && group.MemberCount(g) > 1 {
			return g, ErrLastAdmin
		}
		return group.RemoveMember(g, userID, now)
	})
}

// RemoveMember lets an admin remove another member.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, actorID, userID string, now time.Time) (core.Group, error) {
	return s.update(ctx, groupID, func(g core.Group) (core.Group, error) {
		if !group.IsAdmin(g, actorID) {
			return g, ErrNotAdmin
		}
		if actorID == userID && adminCount(g) == 1 && group.MemberCount(g) > 1 {
			return g, ErrLastAdmin
		}
		return group.RemoveMember(g, userID, now)
	})
}

// PromoteMember lets an admin make another active member an admin.
func (s *GroupService) PromoteMember(ctx context.Context, groupID, actorID, userID string, now time.Time) (core.Group, error) {
	return s.update(ctx, groupID, func(g core.Group) (core.Group, error) {
		if !group.IsAdmin(g, actorID) {
			return g, ErrNotAdmin
		}
		return group.SetRole(g, userID, core.RoleAdmin, now)
	})
}

func (s *GroupService) update(ctx context.Context, groupID string, fn func(core.Group) (core.Group, error)) (core.Group, error) {
	unlock := s.lock(groupID)
	defer unlock()

	g, err := s.storage.GetGroup(ctx, groupID)
	if err != nil {
		return core.Group{}, err
	}
	g, err = fn(g)
	if err != nil {
		return core.Group{}, err
	}
	if err := s.storage.SaveGroup(ctx, g); err != nil {
		return core.Group{}, err
	}

	groupLogger(ctx).DebugContext(ctx, "Group roster saved",
		ledgerlog.FieldGroupID, g.ID,
		"members", g.Stats.MemberCount)
	return g, nil
}

func groupLogger(ctx context.Context) *ledgerlog.Logger {
	return ledgerlog.FromContext(ctx).WithComponent(ledgerlog.ComponentGroup)
}

func adminCount(g core.Group) int {
	n := 0
	for _, m := range g.Members {
		if m.IsActive && m.Role == core.RoleAdmin {
			n++
		}
	}
	return n
}
