package rules

import (
	"time"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
)

// GracePeriod is how long a soft-deleted account stays restorable.
const GracePeriod = 30 * 24 * time.Hour

type Transition string

const (
	TransitionInitiateDeletion Transition = "initiate_deletion"
	TransitionAdminDelete      Transition = "admin_delete"
	TransitionRestore          Transition = "restore"
	TransitionExpire           Transition = "expire"
	TransitionDeclineRecovery  Transition = "decline_recovery"
	TransitionBan              Transition = "ban"
)

var validTransitions = map[enums.AccountStatus]map[Transition]bool{
	enums.AccountStatusActive: {
		TransitionInitiateDeletion: true,
		TransitionAdminDelete:      true,
		TransitionBan:              true,
	},
	enums.AccountStatusSoftDeleted: {
		TransitionRestore:         true,
		TransitionExpire:          true,
		TransitionDeclineRecovery: true,
	},
	enums.AccountStatusBanned: {},
}

func CanTransition(from enums.AccountStatus, t Transition) bool {
	return validTransitions[from][t]
}

func GraceUntil(deletedAt time.Time) time.Time {
	return deletedAt.Add(GracePeriod)
}

// CheckInitiateDeletion guards both self and moderator deletion.
func CheckInitiateDeletion(a model.Account) error {
	if CanTransition(a.Status, TransitionInitiateDeletion) {
		return nil
	}
	switch a.Status {
	case enums.AccountStatusSoftDeleted:
		return errs.ErrAlreadyDeleted
	case enums.AccountStatusBanned:
		return errs.ErrTerminalState
	default:
		return errs.ErrInvalidState
	}
}

// CheckRestore allows restore strictly before the grace deadline.
func CheckRestore(a model.Account, now time.Time) error {
	switch a.Status {
	case enums.AccountStatusBanned:
		return errs.ErrTerminalState
	case enums.AccountStatusActive:
		return errs.ErrInvalidState
	}
	if !CanTransition(a.Status, TransitionRestore) || a.DeletionGraceUntil == nil {
		return errs.ErrInvalidState
	}
	if !now.Before(*a.DeletionGraceUntil) {
		return errs.ErrGracePeriodExpired
	}
	return nil
}

// CheckExpire reports whether the sweep may permanently remove a.
func CheckExpire(a model.Account, now time.Time) error {
	if !CanTransition(a.Status, TransitionExpire) || a.DeletionGraceUntil == nil {
		return errs.ErrInvalidState
	}
	if now.Before(*a.DeletionGraceUntil) {
		return errs.ErrInvalidState
	}
	return nil
}

func CheckDeclineRecovery(a model.Account) error {
	if CanTransition(a.Status, TransitionDeclineRecovery) {
		return nil
	}
	if a.Status == enums.AccountStatusBanned {
		return errs.ErrTerminalState
	}
	return errs.ErrInvalidState
}

func CheckBan(a model.Account) error {
	if CanTransition(a.Status, TransitionBan) {
		return nil
	}
	if a.Status == enums.AccountStatusBanned {
		return errs.ErrTerminalState
	}
	return errs.ErrInvalidState
}

// CheckActor guards every user-initiated gate action.
func CheckActor(a model.Account) error {
	switch a.Status {
	case enums.AccountStatusActive:
		return nil
	case enums.AccountStatusSoftDeleted:
		return errs.ErrAlreadyDeleted
	case enums.AccountStatusBanned:
		return errs.ErrTerminalState
	default:
		return errs.ErrInvalidState
	}
}

// GraceRemaining is zero for accounts that are not soft-deleted or whose
// deadline has passed.
func GraceRemaining(a model.Account, now time.Time) time.Duration {
	if a.Status != enums.AccountStatusSoftDeleted || a.DeletionGraceUntil == nil {
		return 0
	}
	left := a.DeletionGraceUntil.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
