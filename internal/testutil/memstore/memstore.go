// Package memstore is an in-memory stand-in for the Postgres repositories.
// It mirrors their method sets and guarded-update semantics so services can
// be tested without a database. WithTx serializes transactions and rolls the
// whole state back when fn fails.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/kinship/internal/domain/model"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
)

type txMarker struct{}

type pairKey [2]uuid.UUID

type allowanceKey struct {
	account uuid.UUID
	day     string
}

type state struct {
	accounts      map[uuid.UUID]model.Account
	identities    map[string]pgrepo.IdentityRecord
	connections   map[uuid.UUID]model.Connection
	connOrder     map[uuid.UUID]int64
	messages      []model.Message
	ledger        []model.LedgerEvent
	vouches       map[pairKey]time.Time
	blocks        map[pairKey]string
	posts         map[uuid.UUID]model.Post
	comments      []model.Comment
	allowance     map[allowanceKey]int
	notifications map[uuid.UUID]model.Notification
	deletedWith   map[uuid.UUID]uuid.UUID
	payments      map[string]pgrepo.PaymentTransactionRecord
	audit         []model.AuditEvent
	seq           int64
}

func newState() *state {
	return &state{
		accounts:      make(map[uuid.UUID]model.Account),
		identities:    make(map[string]pgrepo.IdentityRecord),
		connections:   make(map[uuid.UUID]model.Connection),
		connOrder:     make(map[uuid.UUID]int64),
		vouches:       make(map[pairKey]time.Time),
		blocks:        make(map[pairKey]string),
		posts:         make(map[uuid.UUID]model.Post),
		allowance:     make(map[allowanceKey]int),
		notifications: make(map[uuid.UUID]model.Notification),
		deletedWith:   make(map[uuid.UUID]uuid.UUID),
		payments:      make(map[string]pgrepo.PaymentTransactionRecord),
	}
}

func (s *state) clone() *state {
	out := &state{
		accounts:      make(map[uuid.UUID]model.Account, len(s.accounts)),
		identities:    make(map[string]pgrepo.IdentityRecord, len(s.identities)),
		connections:   make(map[uuid.UUID]model.Connection, len(s.connections)),
		connOrder:     make(map[uuid.UUID]int64, len(s.connOrder)),
		messages:      append([]model.Message(nil), s.messages...),
		ledger:        append([]model.LedgerEvent(nil), s.ledger...),
		vouches:       make(map[pairKey]time.Time, len(s.vouches)),
		blocks:        make(map[pairKey]string, len(s.blocks)),
		posts:         make(map[uuid.UUID]model.Post, len(s.posts)),
		comments:      append([]model.Comment(nil), s.comments...),
		allowance:     make(map[allowanceKey]int, len(s.allowance)),
		notifications: make(map[uuid.UUID]model.Notification, len(s.notifications)),
		deletedWith:   make(map[uuid.UUID]uuid.UUID, len(s.deletedWith)),
		payments:      make(map[string]pgrepo.PaymentTransactionRecord, len(s.payments)),
		audit:         append([]model.AuditEvent(nil), s.audit...),
		seq:           s.seq,
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.identities {
		out.identities[k] = v
	}
	for k, v := range s.connections {
		out.connections[k] = v
	}
	for k, v := range s.connOrder {
		out.connOrder[k] = v
	}
	for k, v := range s.vouches {
		out.vouches[k] = v
	}
	for k, v := range s.blocks {
		out.blocks[k] = v
	}
	for k, v := range s.posts {
		out.posts[k] = v
	}
	for k, v := range s.allowance {
		out.allowance[k] = v
	}
	for k, v := range s.notifications {
		out.notifications[k] = v
	}
	for k, v := range s.deletedWith {
		out.deletedWith[k] = v
	}
	for k, v := range s.payments {
		out.payments[k] = v
	}
	return out
}

func (s *state) nextSeq() int64 {
	s.seq++
	return s.seq
}

// Store owns the shared state. Sub-stores are views over it.
type Store struct {
	mu       sync.Mutex
	st       *state
	failures map[string]error
}

func New() *Store {
	return &Store{st: newState(), failures: make(map[string]error)}
}

// FailOn makes the named operation return err until cleared with a nil err.
// Names are "<store>.<method>", for example "audit.append".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if inTx(ctx) {
		return fn(ctx, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txMarker{}, true), nil); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// lock takes the store mutex unless ctx already runs inside WithTx.
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txMarker{}).(bool)
	return v
}

func (s *Store) Accounts() *Accounts { return &Accounts{s: s} }
func (s *Store) Identities() *Identities { return &Identities{s: s} }
func (s *Store) Connections() *Connections { return &Connections{s: s} }
func (s *Store) Messages() *Messages { return &Messages{s: s} }
func (s *Store) Wallet() *Wallet { return &Wallet{s: s} }
func (s *Store) Vouches() *Vouches { return &Vouches{s: s} }
func (s *Store) Blocks() *Blocks { return &Blocks{s: s} }
func (s *Store) Comments() *Comments { return &Comments{s: s} }
func (s *Store) Posts() *Posts { return &Posts{s: s} }
func (s *Store) Notifications() *Notifications { return &Notifications{s: s} }
func (s *Store) Payments() *Payments { return &Payments{s: s} }
func (s *Store) Audit() *Audit { return &Audit{s: s} }
func (s *Store) Dependents() *Dependents { return &Dependents{s: s} }

// AuditEvents returns a copy of all recorded audit events in order.
func (s *Store) AuditEvents() []model.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEvent(nil), s.st.audit...)
}

// Ledger returns a copy of the account's ledger rows, oldest first.
func (s *Store) Ledger(accountID uuid.UUID) []model.LedgerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.LedgerEvent
	for _, ev := range s.st.ledger {
		if ev.AccountID == accountID {
			out = append(out, ev)
		}
	}
	return out
}

// Connection returns the raw row regardless of deletion flags.
func (s *Store) Connection(id uuid.UUID) (model.Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.connections[id]
	return c, ok
}

// Post returns the raw row regardless of deletion flags.
func (s *Store) Post(id uuid.UUID) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.posts[id]
	return p, ok
}

// Notification returns the raw row regardless of deletion flags.
func (s *Store) Notification(id uuid.UUID) (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.st.notifications[id]
	return n, ok
}

// CountRows reports how many rows reference the account anywhere.
func (s *Store) CountRows(accountID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.st
	count := 0
	if _, ok := st.accounts[accountID]; ok {
		count++
	}
	for _, rec := range st.identities {
		if rec.AccountID == accountID {
			count++
		}
	}
	for _, c := range st.connections {
		if c.Involves(accountID) {
			count++
		}
	}
	for _, m := range st.messages {
		if m.SenderID == accountID || m.ReceiverID == accountID {
			count++
		}
	}
	for _, ev := range st.ledger {
		if ev.AccountID == accountID {
			count++
		}
	}
	for k := range st.vouches {
		if k[0] == accountID || k[1] == accountID {
			count++
		}
	}
	for k := range st.blocks {
		if k[0] == accountID || k[1] == accountID {
			count++
		}
	}
	for _, p := range st.posts {
		if p.AuthorID == accountID {
			count++
		}
	}
	for _, c := range st.comments {
		if c.AuthorID == accountID {
			count++
		}
	}
	for _, n := range st.notifications {
		if n.RecipientID == accountID {
			count++
		}
	}
	for _, p := range st.payments {
		if p.AccountID == accountID {
			count++
		}
	}
	return count
}

func sortConnectionsNewest(st *state, conns []model.Connection) {
	sort.Slice(conns, func(i, j int) bool {
		return st.connOrder[conns[i].ID] > st.connOrder[conns[j].ID]
	})
}
