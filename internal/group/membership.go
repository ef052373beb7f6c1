// Package group maintains a group's member roster and derived stats.
//
// Members are never removed from the roster. Leaving or being removed marks
// the record inactive so historical expenses keep their attribution, and
// MemberCount is always recomputed from the active records.
package group

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger/internal/core"
)

var ErrInvalidRole = errors.New("invalid member role")

// AddMember adds userID with role, defaulting to member. An inactive record
// is reactivated with a fresh JoinedAt and the requested role; an active
// record is returned unchanged.
func AddMember(g core.Group, userID string, role core.Role, now time.Time) (core.Group, core.Member, error) {
	if strings.TrimSpace(userID) == "" {
		return g, core.Member{}, fmt.Errorf("%w: empty user id", core.ErrInvalidParticipant)
	}
	if role == "" {
		role = core.RoleMember
	}
	if !role.Valid() {
		return g, core.Member{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	members := cloneMembers(g.Members)
	idx := find(members, userID)
	switch {
	case idx >= 0 && members[idx].IsActive:
		return g, members[idx], nil
	case idx >= 0:
		members[idx].IsActive = true
		members[idx].JoinedAt = now
		members[idx].Role = role
	default:
		members = append(members, core.Member{UserID: userID, Role: role, JoinedAt: now, IsActive: true})
		idx = len(members) - 1
	}

	g.Members = members
	g.Stats.MemberCount = MemberCount(g)
	g.UpdatedAt = now
	return g, members[idx], nil
}

// RemoveMember marks the active record for userID inactive.
func RemoveMember(g core.Group, userID string, now time.Time) (core.Group, error) {
	members := cloneMembers(g.Members)
	idx := find(members, userID)
	if idx < 0 || !members[idx].IsActive {
		return g, fmt.Errorf("%w: %s", core.ErrMemberNotFound, userID)
	}
	members[idx].IsActive = false

	g.Members = members
	g.Stats.MemberCount = MemberCount(g)
	g.UpdatedAt = now
	return g, nil
}

// SetRole changes the role of an active member.
func SetRole(g core.Group, userID string, role core.Role, now time.Time) (core.Group, error) {
	if !role.Valid() {
		return g, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	members := cloneMembers(g.Members)
	idx := find(members, userID)
	if idx < 0 || !members[idx].IsActive {
		return g, fmt.Errorf("%w: %s", core.ErrMemberNotFound, userID)
	}
	members[idx].Role = role

	g.Members = members
	g.UpdatedAt = now
	return g, nil
}

func IsMember(g core.Group, userID string) bool {
	idx := find(g.Members, userID)
	return idx >= 0 && g.Members[idx].IsActive
}

func IsAdmin(g core.Group, userID string) bool {
	idx := find(g.Members, userID)
	return idx >= 0 && g.Members[idx].IsActive && g.Members[idx].Role == core.RoleAdmin
}

// ActiveMembers returns the user IDs of active members in roster order.
func ActiveMembers(g core.Group) []string {
	var ids []string
	for _, m := range g.Members {
		if m.IsActive {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

func MemberCount(g core.Group) int {
	n := 0
	for _, m := range g.Members {
		if m.IsActive {
			n++
		}
	}
	return n
}

func find(members []core.Member, userID string) int {
	for i, m := range members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

func cloneMembers(in []core.Member) []core.Member {
	out := make([]core.Member, len(in), len(in)+1)
	copy(out, in)
	return out
}
