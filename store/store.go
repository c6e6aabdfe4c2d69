// Package store defines the MessageStore contract referenced by the
// session layer (spec §1: "concrete persistent message stores" are an
// external collaborator, referenced only by interface) and ships a required
// in-memory implementation plus two optional SQL-backed ones.
package store

import (
	"time"

	"github.com/pkg/errors"
)

// Record is one previously-sent or previously-received message, keyed by
// its MsgSeqNum, as needed to service a ResendRequest (spec §4.6,
// SPEC_FULL.md supplemented resend processing).
type Record struct {
	SeqNum  int
	Sent    time.Time
	RawBody []byte
}

// MessageStore persists per-session sequence numbers and sent-message
// history. The core session state machine only ever talks to this
// interface; no concrete store is imported outside this package and its
// subpackages.
type MessageStore interface {
	// NextSenderSeqNum and NextTargetSeqNum return the next sequence number
	// to use/expect for session, initialising state at 1 on first use.
	NextSenderSeqNum(session string) (int, error)
	NextTargetSeqNum(session string) (int, error)

	IncrNextSenderSeqNum(session string) error
	IncrNextTargetSeqNum(session string) error

	SetNextSenderSeqNum(session string, n int) error
	SetNextTargetSeqNum(session string, n int) error

	// Reset zeroes both counters back to 1 (spec §4.6 reset_on_* rules).
	Reset(session string) error

	// SaveMessage records an outbound message so it can later be replayed
	// in response to a ResendRequest.
	SaveMessage(session string, rec Record) error

	// MessagesInRange returns previously-sent records with SeqNum in
	// [begin, end] inclusive; end == 0 means "through the highest known
	// sequence number" (FIX EndSeqNo=0 convention).
	MessagesInRange(session string, begin, end int) ([]Record, error)

	// Close releases any resources (connections, file handles) the store
	// holds.
	Close() error
}

// ErrUnknownSession is returned by stores that require an explicit Reset or
// seq-num initialisation before first use; the in-memory store instead
// lazily initialises, so it never returns this.
var ErrUnknownSession = errors.New("store: unknown session")
