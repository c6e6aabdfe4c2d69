package fixengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/abquickfix/fixengine/datadictionary"
	"github.com/abquickfix/fixengine/internal/log"
	"github.com/abquickfix/fixengine/store"
	"github.com/abquickfix/fixengine/tag"
)

// Responder is the write side of a session's transport: the engine task
// hands outbound bytes to it without knowing whether the transport is a
// live socket or a queued reconnect buffer (spec §4.8's "single-producer
// from the engine task, single-consumer on the writer task" channel).
type Responder interface {
	Send(raw []byte) error
}

// Settings holds the per-session configuration surface (spec §4.9) after
// resolution from config.Section, independent of the config package so the
// session layer does not have to import file-format concerns.
type Settings struct {
	HeartBtInt        time.Duration
	ResetOnLogon      bool
	ResetOnLogout     bool
	ResetOnDisconnect bool
	MaxLatency        time.Duration
	ReconnectInterval time.Duration
	ValidateEnumVals  bool
}

// DefaultSettings mirrors spec §4.9's defaults plus the SPEC_FULL.md
// resolutions of Open Questions (a)/(b)/(c).
func DefaultSettings() Settings {
	return Settings{
		HeartBtInt:        30 * time.Second,
		ResetOnLogon:      true,
		ResetOnLogout:     true,
		ResetOnDisconnect: true,
		MaxLatency:        2 * time.Minute,
		ReconnectInterval: 10 * time.Second,
		ValidateEnumVals:  true,
	}
}

// Session is one logical FIX session: identity, mutable state, the
// dictionary it parses/renders with, its admission schedule, its message
// store and its logging sink (spec §3 SessionState, §4.6).
type Session struct {
	ID   SessionID
	Dict *datadictionary.DataDictionary

	Settings Settings
	Schedule *Schedule
	Store    store.MessageStore
	Log      log.Log

	state *SessionState

	mu        sync.Mutex
	responder Responder
}

// NewSession builds a session in the disconnected phase, ready to be
// attached to a transport by the I/O layer.
func NewSession(id SessionID, dd *datadictionary.DataDictionary, settings Settings, sched *Schedule, st store.MessageStore, lg log.Log) *Session {
	if sched == nil {
		sched = NewNonStopSchedule()
	}
	if st == nil {
		st = store.NewMemStore()
	}
	if lg == nil {
		lg = log.NopLog{}
	}
	state := NewSessionState()
	sender, err := st.NextSenderSeqNum(id.String())
	if err != nil {
		sender = 1
	}
	target, err := st.NextTargetSeqNum(id.String())
	if err != nil {
		target = 1
	}
	state.SeedSequenceNumbers(sender, target)
	return &Session{
		ID: id, Dict: dd, Settings: settings, Schedule: sched, Store: st, Log: lg,
		state: state,
	}
}

// State exposes the mutable sequence/phase state for the I/O and registry
// layers (e.g. reconnect logic resetting counters on disconnect).
func (s *Session) State() *SessionState { return s.state }

// IsLoggedOn reports whether the session currently considers itself active.
func (s *Session) IsLoggedOn() bool { return s.state.Phase() == PhaseActive }

// SetResponder attaches (or detaches, with nil) the transport write side.
// Called by the I/O layer on connect/disconnect.
func (s *Session) SetResponder(r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = r
}

func (s *Session) responderOrNil() Responder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responder
}

// --- Lifecycle transitions (spec §4.6) ---

// Connect transitions a disconnected session into logon_sent, building and
// sending the Logon message itself (SPEC_FULL.md admin message builders).
func (s *Session) Connect(r Responder) error {
	if !s.Schedule.IsSessionTime(time.Now().UTC()) {
		return errors.New("session: refusing to connect outside configured schedule window")
	}
	s.SetResponder(r)
	if s.Settings.ResetOnLogon {
		s.resetSequenceNumbers()
	}
	s.state.setPhase(PhaseLogonSent)
	return s.sendAdmin(s.buildLogon())
}

// OnConnectAccepted handles the acceptor side: a counterparty dialled in;
// we stay disconnected until their Logon arrives (handled by HandleMessage).
func (s *Session) OnConnectAccepted(r Responder) {
	s.SetResponder(r)
}

// Disconnect tears the session back down to disconnected, optionally
// resetting sequence numbers per configuration.
func (s *Session) Disconnect(reason string) {
	s.Log.OnEventf("disconnect: %s", reason)
	s.SetResponder(nil)
	if s.Settings.ResetOnDisconnect {
		s.resetSequenceNumbers()
	}
	s.state.setPhase(PhaseDisconnected)
}

func (s *Session) resetSequenceNumbers() {
	s.state.ResetSequenceNumbers()
	_ = s.Store.Reset(s.ID.String())
}

// incrSenderSeq advances the in-memory sender counter and mirrors it to the
// store so a restart resumes from the last persisted value (spec §4.6,
// store.MessageStore's Incr methods).
func (s *Session) incrSenderSeq() {
	s.state.IncrSenderSeq()
	_ = s.Store.IncrNextSenderSeqNum(s.ID.String())
}

// incrTargetSeq advances the in-memory target counter and mirrors it to the
// store, same rationale as incrSenderSeq.
func (s *Session) incrTargetSeq() {
	s.state.IncrTargetSeq()
	_ = s.Store.IncrNextTargetSeqNum(s.ID.String())
}

// HandleMessage advances the state machine for one parsed inbound message
// (spec §4.6 verify + transitions). It either returns a business message to
// forward to from_app (admin messages return nil, having been handled
// here), or a MessageRejectError describing why the message was rejected.
func (s *Session) HandleMessage(msg *Message) (*Message, error) {
	s.state.touchRecv(time.Now().UTC())
	s.Log.OnIncoming(msg.rawBytes)

	if err := s.verify(msg); err != nil {
		s.sendReject(msg, err)
		return nil, err
	}

	msgType, _ := msg.MsgType()
	switch msgType {
	case tag.MsgTypeLogon:
		return nil, s.onLogon(msg)
	case tag.MsgTypeHeartbeat:
		s.incrTargetSeq()
		return nil, nil
	case tag.MsgTypeTestRequest:
		return nil, s.onTestRequest(msg)
	case tag.MsgTypeResendRequest:
		return nil, s.onResendRequest(msg)
	case tag.MsgTypeSequenceReset:
		return nil, s.onSequenceReset(msg)
	case tag.MsgTypeLogout:
		return nil, s.onLogout(msg)
	case tag.MsgTypeReject:
		s.incrTargetSeq()
		return nil, nil
	default:
		s.incrTargetSeq()
		return msg, nil
	}
}

// verify checks BeginString/CompIDs/SendingTime/MsgSeqNum per spec §4.6.
func (s *Session) verify(msg *Message) error {
	begin, _ := msg.Header.GetString(tag.BeginString)
	if begin != s.ID.BeginString {
		return NewMessageRejectErrorForTag(
			fmt.Sprintf("BeginString mismatch: expected %s, got %s", s.ID.BeginString, begin),
			RejectReasonCompIdProblem, int(tag.BeginString))
	}

	sender, _ := msg.Header.GetString(tag.SenderCompID)
	target, _ := msg.Header.GetString(tag.TargetCompID)
	if sender != s.ID.TargetCompID || target != s.ID.SenderCompID {
		return NewMessageRejectErrorForTag("SenderCompID/TargetCompID do not match this session",
			RejectReasonCompIdProblem, int(tag.SenderCompID))
	}

	if sendingTimeRaw, ok := msg.Header.GetString(tag.SendingTime); ok {
		var v UTCTimestampValue
		if err := v.readString(sendingTimeRaw); err == nil {
			delta := time.Since(v.Value)
			if delta < 0 {
				delta = -delta
			}
			if delta > s.maxLatency() {
				return NewMessageRejectErrorForTag("SendingTime outside accuracy tolerance",
					RejectReasonSendingTimeAccuracyProblem, int(tag.SendingTime))
			}
		}
	}

	seqNumRaw, ok := msg.Header.GetString(tag.MsgSeqNum)
	if !ok {
		return requiredTagMissing(int(tag.MsgSeqNum))
	}
	var iv IntValue
	if err := iv.readString(seqNumRaw); err != nil {
		return incorrectDataFormat(int(tag.MsgSeqNum), err)
	}
	expected := s.state.NextTargetSeq()
	switch {
	case iv.Value == expected:
		return nil
	case iv.Value > expected:
		s.state.setPendingResend(&ResendRange{Begin: expected, End: iv.Value - 1})
		_ = s.sendAdmin(s.buildResendRequest(expected, iv.Value-1))
		return NewMessageRejectErrorForTag(
			fmt.Sprintf("sequence gap: expected %d, got %d", expected, iv.Value),
			RejectReasonTagSpecifiedOutOfOrder, int(tag.MsgSeqNum))
	default:
		possDup, _ := msg.Header.GetString(tag.PossDupFlag)
		if possDup == "Y" {
			return nil
		}
		s.state.setPhase(PhaseTerminalError)
		return NewMessageRejectErrorForTag(
			fmt.Sprintf("MsgSeqNum too low: expected %d, got %d, PossDupFlag not Y", expected, iv.Value),
			RejectReasonTagSpecifiedOutOfOrder, int(tag.MsgSeqNum))
	}
}

func (s *Session) maxLatency() time.Duration {
	if s.Settings.MaxLatency <= 0 {
		return DefaultSettings().MaxLatency
	}
	return s.Settings.MaxLatency
}

func (s *Session) onLogon(msg *Message) error {
	switch s.state.Phase() {
	case PhaseDisconnected:
		if !s.Schedule.IsSessionTime(time.Now().UTC()) {
			s.incrTargetSeq()
			_ = s.sendAdmin(s.buildLogout("logon rejected: outside configured schedule window"))
			s.Disconnect("logon rejected: outside schedule")
			return errors.New("session: logon rejected, outside configured schedule window")
		}
		if s.Settings.ResetOnLogon {
			s.resetSequenceNumbers()
		}
		s.state.setPhase(PhaseLogonReceived)
		s.incrTargetSeq()
		if err := s.sendAdmin(s.buildLogon()); err != nil {
			return err
		}
		s.state.setPhase(PhaseActive)
		return nil
	case PhaseLogonSent:
		s.incrTargetSeq()
		s.state.setPhase(PhaseActive)
		return nil
	default:
		s.incrTargetSeq()
		return nil
	}
}

func (s *Session) onTestRequest(msg *Message) error {
	s.incrTargetSeq()
	testReqID, _ := msg.Body.GetString(tag.TestReqID)
	return s.sendAdmin(s.buildHeartbeat(testReqID))
}

func (s *Session) onResendRequest(msg *Message) error {
	s.incrTargetSeq()
	beginRaw, _ := msg.Body.GetString(tag.BeginSeqNo)
	endRaw, _ := msg.Body.GetString(tag.EndSeqNo)
	var beginV, endV IntValue
	_ = beginV.readString(beginRaw)
	_ = endV.readString(endRaw)

	records, err := s.Store.MessagesInRange(s.ID.String(), beginV.Value, endV.Value)
	if err != nil {
		return errors.Wrap(err, "session: resend lookup")
	}
	if len(records) == 0 {
		return s.sendAdmin(s.buildSequenceResetGapFill(s.state.NextSenderSeq()))
	}
	for _, rec := range records {
		if s.responderOrNil() == nil {
			break
		}
		_ = s.responderOrNil().Send(rec.RawBody)
	}
	return nil
}

func (s *Session) onSequenceReset(msg *Message) error {
	newSeqRaw, _ := msg.Body.GetString(tag.NewSeqNo)
	var iv IntValue
	if err := iv.readString(newSeqRaw); err != nil {
		return incorrectDataFormat(int(tag.NewSeqNo), err)
	}
	if iv.Value < s.state.NextTargetSeq() {
		return NewMessageRejectErrorForTag("SequenceReset NewSeqNo decreases the sequence number",
			RejectReasonValueOutOfRange, int(tag.NewSeqNo))
	}
	s.state.SetTargetSeq(iv.Value)
	_ = s.Store.SetNextTargetSeqNum(s.ID.String(), iv.Value)
	return nil
}

func (s *Session) onLogout(msg *Message) error {
	s.incrTargetSeq()
	if s.state.Phase() == PhaseLogoutSent {
		s.Disconnect("logout acknowledged")
		return nil
	}
	_ = s.sendAdmin(s.buildLogout(""))
	s.Disconnect("logout received")
	return nil
}

// InitiateLogout begins a graceful logout (active -> logout_sent), used both
// for application-requested logout and for schedule-driven out-of-session
// transitions (spec §4.7).
func (s *Session) InitiateLogout(reason string) error {
	s.state.setPhase(PhaseLogoutSent)
	return s.sendAdmin(s.buildLogout(reason))
}

// --- Timers (spec §5: 2x heartbeat -> TestRequest, 2.5x -> Logout) ---

// CheckTimers inspects elapsed time since the last inbound/outbound
// activity and reacts per spec §5/§4.6; callers invoke this from a periodic
// timer (fixctl start's per-session runSessionTicker, once a second).
func (s *Session) CheckTimers(now time.Time) error {
	if s.state.Phase() != PhaseActive {
		return nil
	}
	hb := s.heartBtInt()

	if now.Sub(s.state.LastSentAt()) >= hb {
		if err := s.sendAdmin(s.buildHeartbeat("")); err != nil {
			return err
		}
	}

	sinceRecv := now.Sub(s.state.LastRecvAt())
	switch {
	case sinceRecv >= time.Duration(2.5*float64(hb)):
		return s.InitiateLogout("heartbeat timeout")
	case sinceRecv >= 2*hb:
		return s.sendAdmin(s.buildTestRequest())
	}
	return nil
}

func (s *Session) heartBtInt() time.Duration {
	if s.Settings.HeartBtInt <= 0 {
		return DefaultSettings().HeartBtInt
	}
	return s.Settings.HeartBtInt
}

// --- Admin message builders (SPEC_FULL.md Supplemented Features) ---

func (s *Session) newAdminHeader(msgType string) *Message {
	msg := &Message{Header: NewHeaderFieldMap(), Body: NewFieldMap(), Trailer: NewTrailerFieldMap()}
	msg.Header.Set(tag.BeginString, s.ID.BeginString)
	msg.Header.Set(tag.MsgType, msgType)
	msg.Header.Set(tag.SenderCompID, s.ID.SenderCompID)
	msg.Header.Set(tag.TargetCompID, s.ID.TargetCompID)
	if s.ID.SenderSubID != "" {
		msg.Header.Set(tag.SenderSubID, s.ID.SenderSubID)
	}
	if s.ID.TargetSubID != "" {
		msg.Header.Set(tag.TargetSubID, s.ID.TargetSubID)
	}
	msg.Header.Set(tag.MsgSeqNum, fmt.Sprintf("%d", s.state.NextSenderSeq()))
	msg.Header.SetField(tag.SendingTime, &UTCTimestampValue{Value: time.Now().UTC()})
	return msg
}

func (s *Session) buildLogon() *Message {
	msg := s.newAdminHeader(tag.MsgTypeLogon)
	msg.Body.Set(tag.EncryptMethod, "0")
	msg.Body.Set(tag.HeartBtInt, fmt.Sprintf("%d", int(s.heartBtInt().Seconds())))
	if s.Settings.ResetOnLogon {
		msg.Body.Set(tag.ResetSeqNumFlag, "Y")
	}
	return msg
}

func (s *Session) buildLogout(text string) *Message {
	msg := s.newAdminHeader(tag.MsgTypeLogout)
	if text != "" {
		msg.Body.Set(tag.Text, text)
	}
	return msg
}

func (s *Session) buildHeartbeat(testReqID string) *Message {
	msg := s.newAdminHeader(tag.MsgTypeHeartbeat)
	if testReqID != "" {
		msg.Body.Set(tag.TestReqID, testReqID)
	}
	return msg
}

func (s *Session) buildTestRequest() *Message {
	msg := s.newAdminHeader(tag.MsgTypeTestRequest)
	msg.Body.Set(tag.TestReqID, uuid.NewString())
	return msg
}

func (s *Session) buildResendRequest(begin, end int) *Message {
	msg := s.newAdminHeader(tag.MsgTypeResendRequest)
	msg.Body.Set(tag.BeginSeqNo, fmt.Sprintf("%d", begin))
	msg.Body.Set(tag.EndSeqNo, fmt.Sprintf("%d", end))
	return msg
}

func (s *Session) buildSequenceResetGapFill(throughSeqNo int) *Message {
	msg := s.newAdminHeader(tag.MsgTypeSequenceReset)
	msg.Body.Set(tag.GapFillFlag, "Y")
	msg.Body.Set(tag.NewSeqNo, fmt.Sprintf("%d", throughSeqNo+1))
	return msg
}

func (s *Session) buildReject(ref *Message, cause error) *Message {
	msg := s.newAdminHeader(tag.MsgTypeReject)
	if refSeq, ok := ref.Header.GetString(tag.MsgSeqNum); ok {
		msg.Body.Set(tag.RefSeqNum, refSeq)
	}
	if refType, ok := ref.MsgType(); ok {
		msg.Body.Set(tag.RefMsgType, refType)
	}
	if mre, ok := cause.(MessageRejectError); ok {
		msg.Body.Set(tag.SessionRejectReason, fmt.Sprintf("%d", int(mre.RejectReason())))
		if t, ok := mre.RefTagID(); ok {
			msg.Body.Set(tag.RefTagID, fmt.Sprintf("%d", t))
		}
		msg.Body.Set(tag.Text, mre.Error())
	} else {
		msg.Body.Set(tag.Text, cause.Error())
	}
	return msg
}

func (s *Session) sendReject(ref *Message, cause error) {
	_ = s.sendAdmin(s.buildReject(ref, cause))
}

// sendAdmin stamps nothing further (newAdminHeader already set MsgSeqNum),
// renders, writes, persists and advances the sender sequence. Used for
// every session-level message the engine itself originates.
func (s *Session) sendAdmin(msg *Message) error {
	raw := render(msg)
	r := s.responderOrNil()
	if r == nil {
		return errors.New("session: no responder attached")
	}
	if err := r.Send(raw); err != nil {
		return errors.Wrap(err, "session: send")
	}
	s.Log.OnOutgoing(raw)
	s.state.touchSent(time.Now().UTC())
	_ = s.Store.SaveMessage(s.ID.String(), store.Record{SeqNum: s.state.NextSenderSeq(), Sent: time.Now().UTC(), RawBody: raw})
	s.incrSenderSeq()
	return nil
}

// SendApp stamps and sends an application message built by the caller
// (header CompIDs/MsgSeqNum/SendingTime are overwritten here so application
// code never has to manage session-level header fields itself).
func (s *Session) SendApp(msg *Message) error {
	admin := s.newAdminHeader("")
	msgType, _ := msg.Header.GetString(tag.MsgType)
	admin.Header.Set(tag.MsgType, msgType)
	admin.Body = msg.Body
	admin.Trailer = msg.Trailer
	return s.sendAdmin(admin)
}
