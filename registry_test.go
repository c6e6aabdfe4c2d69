package fixengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abquickfix/fixengine/internal/log"
	"github.com/abquickfix/fixengine/store"
	"github.com/abquickfix/fixengine/tag"
)

func testSession(t *testing.T, id SessionID) *Session {
	t.Helper()
	dd := testDict(t)
	return NewSession(id, dd, DefaultSettings(), NewNonStopSchedule(), store.NewMemStore(), log.NopLog{})
}

func TestRegistryLookupAndUnregister(t *testing.T) {
	r := NewRegistry()
	id := NewSessionID("FIX.4.3", "BANZAI", "", "", "FIXIMULATOR", "", "", "")
	sess := testSession(t, id)

	r.Register(sess)
	got, ok := r.Lookup(id)
	require.True(t, ok)
	assert.Same(t, sess, got)

	r.Unregister(id)
	_, ok = r.Lookup(id)
	assert.False(t, ok)
}

func TestRegistryRouteInbound(t *testing.T) {
	r := NewRegistry()
	// Local session is BANZAI->FIXIMULATOR; an inbound message from the
	// counterparty is framed with sender=FIXIMULATOR, target=BANZAI.
	localID := NewSessionID("FIX.4.3", "BANZAI", "", "", "FIXIMULATOR", "", "", "")
	sess := testSession(t, localID)
	r.Register(sess)

	header := NewFieldMap()
	header.Set(tag.BeginString, "FIX.4.3")
	header.Set(tag.SenderCompID, "FIXIMULATOR")
	header.Set(tag.TargetCompID, "BANZAI")

	got, ok := r.RouteInbound(header)
	require.True(t, ok)
	assert.Same(t, sess, got)
}

func TestRegistryWithSessionRunsFnOnRegisteredSession(t *testing.T) {
	r := NewRegistry()
	id := NewSessionID("FIX.4.3", "BANZAI", "", "", "FIXIMULATOR", "", "", "")
	sess := testSession(t, id)
	r.Register(sess)

	err := r.WithSession(id, func(s *Session) error {
		assert.Same(t, sess, s)
		return nil
	})
	require.NoError(t, err)

	unknown := NewSessionID("FIX.4.3", "X", "", "", "Y", "", "", "")
	err = r.WithSession(unknown, func(*Session) error { return nil })
	assert.Error(t, err)
}
