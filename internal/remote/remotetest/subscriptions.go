package remotetest

import (
	"context"
	"maps"
	"slices"
	"sort"

	"github.com/silkfinik/fairsplit/internal/remote"
)

// groupSub delivers snapshots of every group its user belongs to. The
// channel is buffered; a full buffer drops the older snapshot in favor of
// the newer one, which is safe because each frame is the complete state.
type groupSub struct {
	server    *Server
	userID    string
	snapshots chan []remote.GroupDoc
	done      chan struct{}
}

func (s *Server) SubscribeGroups(_ context.Context, userID string) (remote.GroupSubscription, error) {
	sub := &groupSub{
		server:    s,
		userID:    userID,
		snapshots: make(chan []remote.GroupDoc, 1),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.groupSubs[sub] = userID
	sub.deliverLocked()
	s.mu.Unlock()
	return sub, nil
}

func (g *groupSub) Snapshots() <-chan []remote.GroupDoc { return g.snapshots }
func (g *groupSub) Err() error                          { return nil }

func (g *groupSub) Cancel() {
	g.server.mu.Lock()
	defer g.server.mu.Unlock()
	select {
	case <-g.done:
		return
	default:
	}
	delete(g.server.groupSubs, g)
	close(g.done)
	close(g.snapshots)
}

func (g *groupSub) deliverLocked() {
	var docs []remote.GroupDoc
	for _, doc := range g.server.groups {
		if slices.Contains(doc.Members, g.userID) || doc.OwnerID == g.userID {
			docs = append(docs, cloneGroup(doc))
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	select {
	case <-g.snapshots:
	default:
	}
	g.snapshots <- docs
}

type expenseSub struct {
	server    *Server
	groupID   string
	snapshots chan []remote.ExpenseDoc
	done      chan struct{}
}

func (s *Server) SubscribeExpenses(_ context.Context, groupID string) (remote.ExpenseSubscription, error) {
	sub := &expenseSub{
		server:    s,
		groupID:   groupID,
		snapshots: make(chan []remote.ExpenseDoc, 1),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.expenseSubs[sub] = groupID
	sub.deliverLocked()
	s.mu.Unlock()
	return sub, nil
}

func (e *expenseSub) Snapshots() <-chan []remote.ExpenseDoc { return e.snapshots }
func (e *expenseSub) Err() error                            { return nil }

func (e *expenseSub) Cancel() {
	e.server.mu.Lock()
	defer e.server.mu.Unlock()
	select {
	case <-e.done:
		return
	default:
	}
	delete(e.server.expenseSubs, e)
	close(e.done)
	close(e.snapshots)
}

func (e *expenseSub) deliverLocked() {
	var docs []remote.ExpenseDoc
	for _, doc := range e.server.expenses[e.groupID] {
		docs = append(docs, cloneExpense(doc))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	select {
	case <-e.snapshots:
	default:
	}
	e.snapshots <- docs
}

func (s *Server) broadcastLocked() {
	for sub := range s.groupSubs {
		sub.deliverLocked()
	}
	for sub := range s.expenseSubs {
		sub.deliverLocked()
	}
}

// cloneGroup deep-copies the document so subscribers never share maps with
// the server's stored state.
func cloneGroup(doc remote.GroupDoc) remote.GroupDoc {
	doc.Members = slices.Clone(doc.Members)
	doc.Ghosts = maps.Clone(doc.Ghosts)
	doc.MemberProfiles = maps.Clone(doc.MemberProfiles)
	return doc
}

func cloneExpense(doc remote.ExpenseDoc) remote.ExpenseDoc {
	doc.Payers = maps.Clone(doc.Payers)
	doc.Splits = maps.Clone(doc.Splits)
	return doc
}
