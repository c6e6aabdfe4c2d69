package fixengine

import (
	"sync"
	"time"
)

// Phase is one state of the session state machine (spec §4.6).
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseLogonSent
	PhaseLogonReceived
	PhaseActive
	PhaseLogoutSent
	PhaseTerminalError
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseLogonSent:
		return "logon_sent"
	case PhaseLogonReceived:
		return "logon_received"
	case PhaseActive:
		return "active"
	case PhaseLogoutSent:
		return "logout_sent"
	case PhaseTerminalError:
		return "terminal_error"
	default:
		return "unknown"
	}
}

// ResendRange is the [begin, end] sequence range a ResendRequest asked the
// counterparty to replay; end of 0 means "through the current high
// watermark" (FIX convention for EndSeqNo=0).
type ResendRange struct {
	Begin int
	End   int
}

// SessionState is the mutable, per-session data the state machine advances
// (spec §3 SessionState). It is guarded by its own mutex so the registry can
// hand out a *Session without forcing every caller through the registry's
// own lock (spec §9: "prefer per-session ownership over global locks").
type SessionState struct {
	mu sync.Mutex

	phase Phase

	nextSenderSeq int
	nextTargetSeq int

	lastSentAt time.Time
	lastRecvAt time.Time

	pendingResend *ResendRange

	testRequestID string
	awaitingTest  bool
}

// NewSessionState returns a fresh, disconnected state with sequence numbers
// starting at 1 (FIX convention: MsgSeqNum begins at 1, not 0).
func NewSessionState() *SessionState {
	return &SessionState{phase: PhaseDisconnected, nextSenderSeq: 1, nextTargetSeq: 1}
}

func (s *SessionState) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *SessionState) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

// NextSenderSeq returns the MsgSeqNum to stamp on the next outbound message,
// without consuming it.
func (s *SessionState) NextSenderSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSenderSeq
}

// NextTargetSeq returns the MsgSeqNum expected on the next inbound message.
func (s *SessionState) NextTargetSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextTargetSeq
}

// IncrSenderSeq advances the outbound sequence counter after a successful
// send (spec §4.6).
func (s *SessionState) IncrSenderSeq() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSenderSeq++
}

// IncrTargetSeq advances the inbound sequence counter after a message is
// accepted as in-order (spec §4.6).
func (s *SessionState) IncrTargetSeq() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTargetSeq++
}

// SeedSequenceNumbers initialises both counters from persisted state (e.g.
// store.MessageStore) at session construction, so a process restart resumes
// where the last run left off instead of silently restarting at 1.
func (s *SessionState) SeedSequenceNumbers(sender, target int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSenderSeq = sender
	s.nextTargetSeq = target
}

// SetTargetSeq forces the inbound sequence counter to n, used when a
// SequenceReset message (gap-fill or reset mode alike) sets the counter
// directly rather than advancing it one message at a time.
func (s *SessionState) SetTargetSeq(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTargetSeq = n
}

// ResetSequenceNumbers zeroes both counters back to 1, per the
// reset_on_logon/reset_on_logout/reset_on_disconnect configuration keys
// (spec §4.6, §4.9).
func (s *SessionState) ResetSequenceNumbers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSenderSeq = 1
	s.nextTargetSeq = 1
}

func (s *SessionState) touchSent(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSentAt = at
}

func (s *SessionState) touchRecv(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRecvAt = at
}

func (s *SessionState) LastSentAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSentAt
}

func (s *SessionState) LastRecvAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRecvAt
}

func (s *SessionState) setPendingResend(r *ResendRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingResend = r
}

func (s *SessionState) PendingResend() *ResendRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingResend
}
