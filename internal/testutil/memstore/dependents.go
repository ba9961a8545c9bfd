package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
)

// Dependents mirrors postgres.DependentsRepo (repo/postgres/dependents.go):
// the same tables are flagged, restored and purged, and a connection whose
// partner is still soft-deleted passes to that partner on restore. Change
// both together.
type Dependents struct {
	s *Store
}

func (r *Dependents) Flag(ctx context.Context, _ pgx.Tx, accountID uuid.UUID, at, noticeUntil time.Time) (pgrepo.FlagSummary, error) {
	defer r.s.lock(ctx)()

	if err := r.s.fail("dependents.flag"); err != nil {
		return nil, err
	}

	st := r.s.st
	at, noticeUntil = at.UTC(), noticeUntil.UTC()
	summary := pgrepo.FlagSummary{}

	for id, conn := range st.connections {
		if !conn.Involves(accountID) || conn.IsDeleted {
			continue
		}
		reason := enums.ClosedReasonAccount
		owner := accountID
		deletedAt, expires := at, noticeUntil
		conn.IsDeleted = true
		conn.DeletedAt = &deletedAt
		conn.ClosedReason = &reason
		conn.DeletedWithAccount = &owner
		conn.PartnerNotified = false
		conn.PartnerNoticeExpiresAt = &expires
		conn.UpdatedAt = at
		st.connections[id] = conn
		summary["connections"]++
	}

	for id, post := range st.posts {
		if post.AuthorID != accountID || post.IsDeleted {
			continue
		}
		deletedAt := at
		post.IsDeleted = true
		post.DeletedAt = &deletedAt
		st.posts[id] = post
		st.deletedWith[id] = accountID
		summary["posts"]++
	}

	for id, n := range st.notifications {
		if n.RecipientID != accountID || n.IsDeleted {
			continue
		}
		deletedAt := at
		n.IsDeleted = true
		n.DeletedAt = &deletedAt
		st.notifications[id] = n
		st.deletedWith[id] = accountID
		summary["notifications"]++
	}
	return summary, nil
}

func (r *Dependents) Unflag(ctx context.Context, _ pgx.Tx, accountID uuid.UUID, at time.Time) (pgrepo.FlagSummary, error) {
	defer r.s.lock(ctx)()

	st := r.s.st
	summary := pgrepo.FlagSummary{}

	for id, conn := range st.connections {
		if conn.DeletedWithAccount == nil || *conn.DeletedWithAccount != accountID {
			continue
		}
		partner, ok := st.accounts[conn.Partner(accountID)]
		switch {
		case ok && partner.Status == enums.AccountStatusActive:
			conn.IsDeleted = false
			conn.DeletedAt = nil
			conn.ClosedReason = nil
			conn.DeletedWithAccount = nil
			conn.PartnerNoticeExpiresAt = nil
			summary["connections"]++
		case ok && partner.Status == enums.AccountStatusSoftDeleted:
			owner := partner.ID
			conn.DeletedWithAccount = &owner
		default:
			conn.DeletedWithAccount = nil
		}
		conn.PartnerNotified = true
		conn.UpdatedAt = at.UTC()
		st.connections[id] = conn
	}

	for id, post := range st.posts {
		if owner, ok := st.deletedWith[id]; !ok || owner != accountID {
			continue
		}
		post.IsDeleted = false
		post.DeletedAt = nil
		st.posts[id] = post
		delete(st.deletedWith, id)
		summary["posts"]++
	}

	for id, n := range st.notifications {
		if owner, ok := st.deletedWith[id]; !ok || owner != accountID {
			continue
		}
		n.IsDeleted = false
		n.DeletedAt = nil
		st.notifications[id] = n
		delete(st.deletedWith, id)
		summary["notifications"]++
	}
	return summary, nil
}

func (r *Dependents) Purge(ctx context.Context, _ pgx.Tx, accountID uuid.UUID) error {
	defer r.s.lock(ctx)()

	if err := r.s.fail("dependents.purge"); err != nil {
		return err
	}

	st := r.s.st
	removedConns := make(map[uuid.UUID]struct{})
	for id, conn := range st.connections {
		if conn.Involves(accountID) {
			removedConns[id] = struct{}{}
			delete(st.connections, id)
			delete(st.connOrder, id)
		}
	}
	messages := st.messages[:0]
	for _, msg := range st.messages {
		if _, gone := removedConns[msg.ConnectionID]; !gone {
			messages = append(messages, msg)
		}
	}
	st.messages = messages

	removedPosts := make(map[uuid.UUID]struct{})
	for id, post := range st.posts {
		if post.AuthorID == accountID {
			removedPosts[id] = struct{}{}
			delete(st.posts, id)
			delete(st.deletedWith, id)
		}
	}
	comments := st.comments[:0]
	for _, c := range st.comments {
		if _, gone := removedPosts[c.PostID]; gone || c.AuthorID == accountID {
			continue
		}
		comments = append(comments, c)
	}
	st.comments = comments

	for id, n := range st.notifications {
		if n.RecipientID == accountID {
			delete(st.notifications, id)
			delete(st.deletedWith, id)
		}
	}

	delete(st.accounts, accountID)
	for email, rec := range st.identities {
		if rec.AccountID == accountID {
			delete(st.identities, email)
		}
	}
	for k := range st.vouches {
		if k[0] == accountID || k[1] == accountID {
			delete(st.vouches, k)
		}
	}
	for k := range st.blocks {
		if k[0] == accountID || k[1] == accountID {
			delete(st.blocks, k)
		}
	}
	ledger := st.ledger[:0]
	for _, ev := range st.ledger {
		if ev.AccountID != accountID {
			ledger = append(ledger, ev)
		}
	}
	st.ledger = ledger
	for id, p := range st.payments {
		if p.AccountID == accountID {
			delete(st.payments, id)
		}
	}
	for k := range st.allowance {
		if k.account == accountID {
			delete(st.allowance, k)
		}
	}
	return nil
}

