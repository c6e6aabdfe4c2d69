package fixengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionIDCanonicalForm(t *testing.T) {
	id := NewSessionID("FIX.4.2", "BUYER", "", "", "SELLER", "", "", "")
	assert.Equal(t, "FIX.4.2:BUYER->SELLER", id.String())

	withSub := NewSessionID("FIX.4.2", "BUYER", "SUB1", "LOC1", "SELLER", "SUB2", "LOC2", "Q1")
	assert.Equal(t, "FIX.4.2:BUYER/SUB1/LOC1->SELLER/SUB2/LOC2/Q1", withSub.String())
}

func TestSessionIDReversed(t *testing.T) {
	id := NewSessionID("FIX.4.2", "BUYER", "", "", "SELLER", "", "", "")
	rev := id.Reversed()
	assert.Equal(t, "FIX.4.2:SELLER->BUYER", rev.String())
	assert.Equal(t, id, rev.Reversed())
}

func TestSessionIDUsableAsMapKey(t *testing.T) {
	a := NewSessionID("FIX.4.2", "BUYER", "", "", "SELLER", "", "", "")
	b := NewSessionID("FIX.4.2", "BUYER", "", "", "SELLER", "", "", "")
	m := map[SessionID]bool{a: true}
	assert.True(t, m[b])
}

func TestSessionIDFromHeader(t *testing.T) {
	fm := NewFieldMap()
	fm.Set(8, "FIX.4.2")
	fm.Set(49, "BUYER")
	fm.Set(56, "SELLER")

	id := sessionIDFromHeader(fm)
	assert.Equal(t, "FIX.4.2:BUYER->SELLER", id.String())
}
