package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreInitialisesSeqNumsLazily(t *testing.T) {
	s := NewMemStore()

	sender, err := s.NextSenderSeqNum("A->B")
	require.NoError(t, err)
	assert.Equal(t, 1, sender)

	target, err := s.NextTargetSeqNum("A->B")
	require.NoError(t, err)
	assert.Equal(t, 1, target)
}

func TestMemStoreIncrAndSetSeqNums(t *testing.T) {
	s := NewMemStore()

	require.NoError(t, s.IncrNextSenderSeqNum("A->B"))
	require.NoError(t, s.IncrNextSenderSeqNum("A->B"))
	sender, err := s.NextSenderSeqNum("A->B")
	require.NoError(t, err)
	assert.Equal(t, 3, sender)

	require.NoError(t, s.SetNextTargetSeqNum("A->B", 50))
	target, err := s.NextTargetSeqNum("A->B")
	require.NoError(t, err)
	assert.Equal(t, 50, target)
}

func TestMemStoreResetZeroesCountersAndRecords(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.IncrNextSenderSeqNum("A->B"))
	require.NoError(t, s.SaveMessage("A->B", Record{SeqNum: 1, Sent: time.Now(), RawBody: []byte("x")}))

	require.NoError(t, s.Reset("A->B"))

	sender, err := s.NextSenderSeqNum("A->B")
	require.NoError(t, err)
	assert.Equal(t, 1, sender)

	recs, err := s.MessagesInRange("A->B", 1, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMemStoreMessagesInRange(t *testing.T) {
	s := NewMemStore()
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.SaveMessage("A->B", Record{SeqNum: i, Sent: time.Now(), RawBody: []byte{byte(i)}}))
	}

	recs, err := s.MessagesInRange("A->B", 2, 4)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 2, recs[0].SeqNum)
	assert.Equal(t, 4, recs[2].SeqNum)

	all, err := s.MessagesInRange("A->B", 1, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemStoreSessionsAreIndependent(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.IncrNextSenderSeqNum("A->B"))

	other, err := s.NextSenderSeqNum("C->D")
	require.NoError(t, err)
	assert.Equal(t, 1, other)
}

func TestMemStoreClose(t *testing.T) {
	s := NewMemStore()
	assert.NoError(t, s.Close())
}
