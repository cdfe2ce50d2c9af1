package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiexchange/predictx/internal/identity"
	"github.com/saiexchange/predictx/internal/market"
)

func TestIntern_StableAndBijective(t *testing.T) {
	m := identity.New()

	alice := m.Intern("alice")
	bob := m.Intern("bob")
	aliceAgain := m.Intern("alice")

	assert.Equal(t, alice, aliceAgain)
	assert.NotEqual(t, alice, bob)

	name, ok := m.External(alice)
	require.True(t, ok)
	assert.Equal(t, "alice", name)
}

func TestExternal_UnknownID(t *testing.T) {
	m := identity.New()
	_, ok := m.External(999)
	assert.False(t, ok)
}

func TestRestore_PreservesMappingsAndNextID(t *testing.T) {
	m := identity.New()
	alice := m.Intern("alice")
	bob := m.Intern("bob")

	entries := m.Entries()
	restored := identity.Restore(entries, m.NextID())

	name, ok := restored.External(alice)
	require.True(t, ok)
	assert.Equal(t, "alice", name)
	name, ok = restored.External(bob)
	require.True(t, ok)
	assert.Equal(t, "bob", name)

	carol := restored.Intern("carol")
	assert.NotEqual(t, alice, carol)
	assert.NotEqual(t, bob, carol)
}

func TestHouseIDNeverAllocated(t *testing.T) {
	m := identity.New()
	for i := 0; i < 5; i++ {
		id := m.Intern("user")
		assert.NotEqual(t, market.HouseID, id)
		_ = i
	}
}
