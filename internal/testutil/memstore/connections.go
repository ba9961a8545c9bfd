package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
)

// Connections mirrors postgres.ConnectionRepo (repo/postgres/connection_repo.go).
type Connections struct {
	s *Store
}

// Seed stores conn as-is, which lets tests build closed or flagged rows.
func (r *Connections) Seed(conn model.Connection) model.Connection {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now().UTC()
		conn.UpdatedAt = conn.CreatedAt
	}
	r.s.st.connections[conn.ID] = conn
	r.s.st.connOrder[conn.ID] = r.s.st.nextSeq()
	return conn
}

func (r *Connections) Create(ctx context.Context, _ pgx.Tx, conn model.Connection) (model.Connection, error) {
	defer r.s.lock(ctx)()

	if conn.RequesterID == uuid.Nil || conn.ReceiverID == uuid.Nil || conn.RequesterID == conn.ReceiverID {
		return model.Connection{}, fmt.Errorf("invalid connection payload")
	}
	if _, found := r.findBetween(conn.RequesterID, conn.ReceiverID, true); found {
		return model.Connection{}, errs.ErrAlreadyConnected
	}
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	conn.Status = enums.ConnectionStatusPending
	conn.IsDeleted = false
	conn.PartnerNotified = true
	conn.UpdatedAt = conn.CreatedAt
	r.s.st.connections[conn.ID] = conn
	r.s.st.connOrder[conn.ID] = r.s.st.nextSeq()
	return conn, nil
}

func (r *Connections) Get(ctx context.Context, id uuid.UUID) (model.Connection, error) {
	defer r.s.lock(ctx)()

	conn, ok := r.s.st.connections[id]
	if !ok {
		return model.Connection{}, errs.ErrNotFound
	}
	return conn, nil
}

func (r *Connections) GetForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (model.Connection, error) {
	return r.Get(ctx, id)
}

func (r *Connections) FindLiveBetween(ctx context.Context, _ pgx.Tx, a, b uuid.UUID) (model.Connection, bool, error) {
	defer r.s.lock(ctx)()

	conn, found := r.findBetween(a, b, true)
	return conn, found, nil
}

func (r *Connections) FindLatestBetween(ctx context.Context, _ pgx.Tx, a, b uuid.UUID) (model.Connection, bool, error) {
	defer r.s.lock(ctx)()

	conn, found := r.findBetween(a, b, false)
	return conn, found, nil
}

func (r *Connections) findBetween(a, b uuid.UUID, liveOnly bool) (model.Connection, bool) {
	var matches []model.Connection
	for _, conn := range r.s.st.connections {
		if !conn.Involves(a) || conn.Partner(a) != b {
			continue
		}
		if liveOnly && !conn.Live() {
			continue
		}
		matches = append(matches, conn)
	}
	if len(matches) == 0 {
		return model.Connection{}, false
	}
	sortConnectionsNewest(r.s.st, matches)
	return matches[0], true
}

func (r *Connections) SetStatus(ctx context.Context, _ pgx.Tx, id uuid.UUID, status enums.ConnectionStatus, at time.Time) (model.Connection, error) {
	defer r.s.lock(ctx)()

	conn, ok := r.s.st.connections[id]
	if !ok || conn.IsDeleted || conn.Status != enums.ConnectionStatusPending {
		return model.Connection{}, errs.ErrInvalidState
	}
	at = at.UTC()
	conn.Status = status
	if status == enums.ConnectionStatusAccepted {
		conn.AcceptedAt = &at
	}
	conn.UpdatedAt = at
	r.s.st.connections[id] = conn
	return conn, nil
}

func (r *Connections) Close(ctx context.Context, _ pgx.Tx, id uuid.UUID, reason enums.ClosedReason, at time.Time) error {
	defer r.s.lock(ctx)()

	conn, ok := r.s.st.connections[id]
	if !ok || conn.IsDeleted {
		return nil
	}
	at = at.UTC()
	conn.IsDeleted = true
	conn.DeletedAt = &at
	conn.ClosedReason = &reason
	conn.UpdatedAt = at
	r.s.st.connections[id] = conn
	return nil
}

func (r *Connections) ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Connection, error) {
	defer r.s.lock(ctx)()

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := make([]model.Connection, 0)
	for _, conn := range r.s.st.connections {
		if conn.Involves(accountID) && !conn.IsDeleted {
			out = append(out, conn)
		}
	}
	sortConnectionsNewest(r.s.st, out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Connections) ListPendingNotices(ctx context.Context, now time.Time, limit int) ([]model.PartnerNotice, error) {
	defer r.s.lock(ctx)()

	if limit <= 0 {
		limit = 100
	}
	out := make([]model.PartnerNotice, 0)
	for _, conn := range r.s.st.connections {
		if conn.PartnerNotified || conn.DeletedWithAccount == nil || conn.PartnerNoticeExpiresAt == nil {
			continue
		}
		if !conn.PartnerNoticeExpiresAt.After(now) {
			continue
		}
		departing := *conn.DeletedWithAccount
		out = append(out, model.PartnerNotice{
			ConnectionID: conn.ID,
			RecipientID:  conn.Partner(departing),
			DepartingID:  departing,
			ExpiresAt:    *conn.PartnerNoticeExpiresAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Connections) MarkPartnerNotified(ctx context.Context, _ pgx.Tx, id uuid.UUID) error {
	defer r.s.lock(ctx)()

	if err := r.s.fail("connections.mark_partner_notified"); err != nil {
		return err
	}

	conn, ok := r.s.st.connections[id]
	if !ok {
		return nil
	}
	conn.PartnerNotified = true
	r.s.st.connections[id] = conn
	return nil
}

type Messages struct {
	s *Store
}

func (r *Messages) Insert(ctx context.Context, _ pgx.Tx, msg model.Message) (model.Message, error) {
	defer r.s.lock(ctx)()

	if err := r.s.fail("messages.insert"); err != nil {
		return model.Message{}, err
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	r.s.st.messages = append(r.s.st.messages, msg)
	return msg, nil
}

func (r *Messages) CountBySender(ctx context.Context, _ pgx.Tx, connectionID, senderID uuid.UUID) (int, error) {
	defer r.s.lock(ctx)()

	count := 0
	for _, msg := range r.s.st.messages {
		if msg.ConnectionID == connectionID && msg.SenderID == senderID {
			count++
		}
	}
	return count, nil
}

func (r *Messages) HasContactCard(ctx context.Context, _ pgx.Tx, connectionID uuid.UUID) (bool, error) {
	defer r.s.lock(ctx)()

	for _, msg := range r.s.st.messages {
		if msg.ConnectionID == connectionID && msg.Kind == enums.MessageKindContactCard {
			return true, nil
		}
	}
	return false, nil
}

func (r *Messages) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]model.Message, error) {
	defer r.s.lock(ctx)()

	if limit <= 0 || limit > 200 {
		limit = 100
	}
	out := make([]model.Message, 0)
	for _, msg := range r.s.st.messages {
		if msg.ConnectionID == connectionID {
			out = append(out, msg)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
