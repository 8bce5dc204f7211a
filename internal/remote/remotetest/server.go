// Package remotetest provides an in-memory remote.Channel for tests and
// for running the daemon without a backend. It keeps documents in maps,
// rebroadcasts snapshots to live subscriptions after every write, and
// arbitrates ghost claims and invite codes the way the real backend does.
package remotetest

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/silkfinik/fairsplit/internal/remote"
)

var _ remote.Channel = (*Server)(nil)

// Server is a fake backend. The zero value is not usable; call NewServer.
type Server struct {
	mu sync.Mutex

	groups   map[string]remote.GroupDoc
	expenses map[string]map[string]remote.ExpenseDoc
	invites  map[string]string

	groupSubs   map[*groupSub]string
	expenseSubs map[*expenseSub]string

	// CurrentUser stands in for the identity the real backend derives from
	// the bearer token. Tests set it before arbitrated calls.
	CurrentUser string

	// FailPush, when non-nil, is returned by PushBatch without writing
	// anything.
	FailPush error

	// PushCalls counts PushBatch invocations, including failed ones.
	PushCalls int

	now func() int64
}

func NewServer() *Server {
	return &Server{
		groups:      make(map[string]remote.GroupDoc),
		expenses:    make(map[string]map[string]remote.ExpenseDoc),
		invites:     make(map[string]string),
		groupSubs:   make(map[*groupSub]string),
		expenseSubs: make(map[*expenseSub]string),
		now:         func() int64 { return time.Now().UnixMilli() },
	}
}

// SetNow overrides the server clock, for deterministic timestamps in tests.
func (s *Server) SetNow(now func() int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SeedGroup installs a group document directly, bypassing PushBatch.
func (s *Server) SeedGroup(doc remote.GroupDoc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[doc.ID] = doc
	if doc.InviteCode != "" {
		s.invites[doc.InviteCode] = doc.ID
	}
	s.broadcastLocked()
}

// SeedExpense installs an expense document directly.
func (s *Server) SeedExpense(doc remote.ExpenseDoc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putExpenseLocked(doc)
	s.broadcastLocked()
}

// Group returns the stored document for id and whether it exists.
func (s *Server) Group(id string) (remote.GroupDoc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.groups[id]
	return doc, ok
}

// Expense returns the stored document for id within a group.
func (s *Server) Expense(groupID, id string) (remote.ExpenseDoc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.expenses[groupID][id]
	return doc, ok
}

// PushBatch applies the batch atomically: when FailPush is set, no
// document is written. Expense math validity is recomputed server-side.
func (s *Server) PushBatch(_ context.Context, batch remote.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PushCalls++
	if s.FailPush != nil {
		return s.FailPush
	}

	for _, doc := range batch.Groups {
		s.groups[doc.ID] = doc
		if doc.InviteCode != "" {
			s.invites[doc.InviteCode] = doc.ID
		}
	}
	for _, doc := range batch.Expenses {
		doc.IsMathValid = expenseMathValid(doc)
		s.putExpenseLocked(doc)
	}
	if !batch.Empty() {
		s.broadcastLocked()
	}
	return nil
}

// ClaimGhost links a ghost to the current user. First claim wins; any
// later claim is rejected.
func (s *Server) ClaimGhost(_ context.Context, groupID, ghostID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return &remote.ArbitrationError{Op: "claimGhost", Code: "not_found", Message: "group does not exist"}
	}
	ghost, ok := group.Ghosts[ghostID]
	if !ok {
		return &remote.ArbitrationError{Op: "claimGhost", Code: "not_found", Message: "ghost does not exist"}
	}
	if ghost.IsMerged {
		return &remote.ArbitrationError{Op: "claimGhost", Code: "already_claimed", Message: "ghost is already linked to a user"}
	}

	ghost.IsMerged = true
	ghost.MergedWithUID = s.CurrentUser
	group.Ghosts[ghostID] = ghost
	if !slices.Contains(group.Members, s.CurrentUser) {
		group.Members = append(group.Members, s.CurrentUser)
	}
	group.UpdatedAt = s.now()
	s.groups[groupID] = group

	s.broadcastLocked()
	return nil
}

// JoinByInviteCode adds the current user to the group the code points at.
func (s *Server) JoinByInviteCode(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groupID, ok := s.invites[code]
	if !ok {
		return "", &remote.ArbitrationError{Op: "joinByInviteCode", Code: "invalid_code", Message: "invite code is not recognized"}
	}

	group := s.groups[groupID]
	if !slices.Contains(group.Members, s.CurrentUser) {
		group.Members = append(group.Members, s.CurrentUser)
		group.UpdatedAt = s.now()
		s.groups[groupID] = group
		s.broadcastLocked()
	}
	return groupID, nil
}

// CreateInviteCode issues a new code for the group, replacing any prior one.
func (s *Server) CreateInviteCode(_ context.Context, groupID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return "", &remote.ArbitrationError{Op: "createInviteCode", Code: "not_found", Message: "group does not exist"}
	}

	code := uuid.NewString()[:8]
	delete(s.invites, group.InviteCode)
	group.InviteCode = code
	s.groups[groupID] = group
	s.invites[code] = groupID
	return code, nil
}

func (s *Server) putExpenseLocked(doc remote.ExpenseDoc) {
	byID, ok := s.expenses[doc.GroupID]
	if !ok {
		byID = make(map[string]remote.ExpenseDoc)
		s.expenses[doc.GroupID] = byID
	}
	byID[doc.ID] = doc
}

// expenseMathValid reports whether payer totals and split totals both
// add up to the expense amount, within a cent.
func expenseMathValid(doc remote.ExpenseDoc) bool {
	var paid, split float64
	for _, v := range doc.Payers {
		paid += v
	}
	for _, v := range doc.Splits {
		split += v
	}
	const epsilon = 0.01
	return math.Abs(paid-doc.Amount) < epsilon && math.Abs(split-doc.Amount) < epsilon
}
