package core

import "time"

const (
	StateActive   LifecycleState = "active"
	StateArchived LifecycleState = "archived"
	StateDeleted  LifecycleState = "deleted"
)

type LifecycleState string

// Lifecycle replaces separate deleted/archived flags with one tagged state.
// DeletedAt is only meaningful when State is StateDeleted.
type Lifecycle struct {
	State     LifecycleState
	DeletedAt time.Time
}

func ActiveLifecycle() Lifecycle {
	return Lifecycle{State: StateActive}
}

func ArchivedLifecycle() Lifecycle {
	return Lifecycle{State: StateArchived}
}

func DeletedLifecycle(at time.Time) Lifecycle {
	return Lifecycle{State: StateDeleted, DeletedAt: at}
}

// IsDeleted treats an unset state as active.
func (l Lifecycle) IsDeleted() bool {
	return l.State == StateDeleted
}

func (l Lifecycle) IsArchived() bool {
	return l.State == StateArchived
}

func (s LifecycleState) Valid() bool {
	switch s {
	case StateActive, StateArchived, StateDeleted:
		return true
	}
	return false
}
