// Package identity translates between the external user identifiers carried
// on the wire (arbitrary strings, the same kind of external UUID the
// original engine tracked directly on orders) and the small internal
// market.UserID the book and engine index positions by. Keeping the
// translation in one place means the core never has to compare strings on
// a matching hot path, and the ledger never has to carry a second identity
// scheme of its own.
package identity

import (
	"errors"

	"github.com/saiexchange/predictx/internal/market"
)

// ErrUnknownUserID is returned by External when asked about an id that was
// never interned.
var ErrUnknownUserID = errors.New("identity: unknown internal user id")

// Mapper is a bidirectional external-id <-> internal-id table. The zero
// value is not usable; construct with New. Like Book, Engine, and Ledger,
// it is only ever touched from the Coordinator's single goroutine and so
// carries no lock of its own.
type Mapper struct {
	toID   map[string]market.UserID
	toName map[market.UserID]string
	nextID market.UserID
}

// New creates an empty mapper. Internal ids are handed out starting at 1;
// market.HouseID (-1) is reserved and never allocated to a real user.
func New() *Mapper {
	return &Mapper{
		toID:   make(map[string]market.UserID),
		toName: make(map[market.UserID]string),
		nextID: 1,
	}
}

// Intern returns the internal id for external, allocating a fresh one on
// first contact. Repeated calls with the same external id always return the
// same internal id.
func (m *Mapper) Intern(external string) market.UserID {
	if id, ok := m.toID[external]; ok {
		return id
	}
	id := m.nextID
	m.nextID++
	m.toID[external] = id
	m.toName[id] = external
	return id
}

// External reverses Intern. It returns false for market.HouseID and for any
// id the mapper has never handed out.
func (m *Mapper) External(id market.UserID) (string, bool) {
	name, ok := m.toName[id]
	return name, ok
}

// Len reports the number of interned users, for tests and snapshot sizing.
func (m *Mapper) Len() int {
	return len(m.toID)
}

// Entry is one row of a full dump, used by the snapshot package.
type Entry struct {
	External string
	Internal market.UserID
}

// Entries returns every mapping, for persistence. Order is unspecified;
// callers that need a stable snapshot should sort by Internal.
func (m *Mapper) Entries() []Entry {
	out := make([]Entry, 0, len(m.toID))
	for ext, id := range m.toID {
		out = append(out, Entry{External: ext, Internal: id})
	}
	return out
}

// Restore rebuilds the mapper from a persisted dump. nextID must be at
// least one greater than the largest Internal id in entries; the snapshot
// package is responsible for passing the value it persisted rather than
// recomputing it, so a gap left by a since-forgotten user isn't reused.
func Restore(entries []Entry, nextID market.UserID) *Mapper {
	m := &Mapper{
		toID:   make(map[string]market.UserID, len(entries)),
		toName: make(map[market.UserID]string, len(entries)),
		nextID: nextID,
	}
	for _, e := range entries {
		m.toID[e.External] = e.Internal
		m.toName[e.Internal] = e.External
	}
	return m
}

// NextID reports the next id that would be allocated, for snapshot dumps.
func (m *Mapper) NextID() market.UserID {
	return m.nextID
}
