package fixengine

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abquickfix/fixengine/datadictionary"
	"github.com/abquickfix/fixengine/internal/log"
	"github.com/abquickfix/fixengine/store"
	"github.com/abquickfix/fixengine/tag"
)

// sessionTestDictionaryXML extends the parser fixture with every admin
// message type the session state machine itself builds and consumes.
const sessionTestDictionaryXML = `<fix type="FIX" major="4" minor="3" servicepack="0">
  <header>
    <field name="BeginString" required="Y"/>
    <field name="BodyLength" required="Y"/>
    <field name="MsgType" required="Y"/>
    <field name="SenderCompID" required="Y"/>
    <field name="TargetCompID" required="Y"/>
    <field name="MsgSeqNum" required="Y"/>
    <field name="SendingTime" required="Y"/>
  </header>
  <trailer>
    <field name="CheckSum" required="Y"/>
  </trailer>
  <messages>
    <message name="Heartbeat" msgtype="0" msgcat="admin">
      <field name="TestReqID" required="N"/>
    </message>
    <message name="TestRequest" msgtype="1" msgcat="admin">
      <field name="TestReqID" required="Y"/>
    </message>
    <message name="ResendRequest" msgtype="2" msgcat="admin">
      <field name="BeginSeqNo" required="Y"/>
      <field name="EndSeqNo" required="Y"/>
    </message>
    <message name="Reject" msgtype="3" msgcat="admin">
      <field name="RefSeqNum" required="Y"/>
      <field name="RefTagID" required="N"/>
      <field name="RefMsgType" required="N"/>
      <field name="SessionRejectReason" required="N"/>
      <field name="Text" required="N"/>
    </message>
    <message name="SequenceReset" msgtype="4" msgcat="admin">
      <field name="GapFillFlag" required="N"/>
      <field name="NewSeqNo" required="Y"/>
    </message>
    <message name="Logout" msgtype="5" msgcat="admin">
      <field name="Text" required="N"/>
    </message>
    <message name="Logon" msgtype="A" msgcat="admin">
      <field name="EncryptMethod" required="Y"/>
      <field name="HeartBtInt" required="Y"/>
      <field name="ResetSeqNumFlag" required="N"/>
    </message>
  </messages>
  <fields>
    <field number="8" name="BeginString" type="STRING"/>
    <field number="9" name="BodyLength" type="LENGTH"/>
    <field number="35" name="MsgType" type="STRING"/>
    <field number="49" name="SenderCompID" type="STRING"/>
    <field number="56" name="TargetCompID" type="STRING"/>
    <field number="34" name="MsgSeqNum" type="SEQNUM"/>
    <field number="52" name="SendingTime" type="UTCTIMESTAMP"/>
    <field number="10" name="CheckSum" type="STRING"/>
    <field number="98" name="EncryptMethod" type="INT"/>
    <field number="108" name="HeartBtInt" type="INT"/>
    <field number="141" name="ResetSeqNumFlag" type="BOOLEAN"/>
    <field number="112" name="TestReqID" type="STRING"/>
    <field number="7" name="BeginSeqNo" type="SEQNUM"/>
    <field number="16" name="EndSeqNo" type="SEQNUM"/>
    <field number="36" name="NewSeqNo" type="SEQNUM"/>
    <field number="123" name="GapFillFlag" type="BOOLEAN"/>
    <field number="45" name="RefSeqNum" type="SEQNUM"/>
    <field number="371" name="RefTagID" type="INT"/>
    <field number="372" name="RefMsgType" type="STRING"/>
    <field number="373" name="SessionRejectReason" type="INT"/>
    <field number="58" name="Text" type="STRING"/>
  </fields>
</fix>`

func sessionTestDict(t *testing.T) *datadictionary.DataDictionary {
	t.Helper()
	dd, err := datadictionary.Parse(strings.NewReader(sessionTestDictionaryXML))
	require.NoError(t, err)
	return dd
}

// recordingResponder captures every raw message the session sends it, so
// tests can assert on the admin messages the state machine builds.
type recordingResponder struct {
	sent [][]byte
}

func (r *recordingResponder) Send(raw []byte) error {
	r.sent = append(r.sent, raw)
	return nil
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	dd := sessionTestDict(t)
	id := NewSessionID("FIX.4.3", "BANZAI", "", "", "FIXIMULATOR", "", "", "")
	return NewSession(id, dd, DefaultSettings(), NewNonStopSchedule(), store.NewMemStore(), log.NopLog{})
}

func counterpartyLogon(t *testing.T, seqNum int) *Message {
	t.Helper()
	dd := sessionTestDict(t)
	sendingTime := time.Now().UTC().Format("20060102-15:04:05.000")
	fields := fmt.Sprintf("34=%d\x0149=FIXIMULATOR\x0152=%s\x0156=BANZAI\x0198=0\x01108=30\x01", seqNum, sendingTime)
	raw := buildMessage(t, "A", "FIX.4.3", fields)
	msg, err := ParseMessage(raw, dd)
	require.NoError(t, err)
	return msg
}

func TestSessionAcceptsCounterpartyLogonAndGoesActive(t *testing.T) {
	sess := newTestSession(t)
	r := &recordingResponder{}
	sess.OnConnectAccepted(r)

	app, err := sess.HandleMessage(counterpartyLogon(t, 1))
	require.NoError(t, err)
	assert.Nil(t, app)
	assert.Equal(t, PhaseActive, sess.State().Phase())
	require.Len(t, r.sent, 1)

	reply, err := ParseMessage(r.sent[0], sessionTestDict(t))
	require.NoError(t, err)
	mt, _ := reply.MsgType()
	assert.Equal(t, tag.MsgTypeLogon, mt)
	assert.Equal(t, 2, sess.State().NextTargetSeq())
}

func TestSessionSequenceGapTriggersResendRequest(t *testing.T) {
	sess := newTestSession(t)
	r := &recordingResponder{}
	sess.OnConnectAccepted(r)

	_, err := sess.HandleMessage(counterpartyLogon(t, 1))
	require.NoError(t, err)
	require.Equal(t, PhaseActive, sess.State().Phase())

	// Jump straight to seq 5, skipping 2-4.
	dd := sessionTestDict(t)
	sendingTime := time.Now().UTC().Format("20060102-15:04:05.000")
	fields := fmt.Sprintf("34=5\x0149=FIXIMULATOR\x0152=%s\x0156=BANZAI\x0198=0\x01108=30\x01", sendingTime)
	raw := buildMessage(t, "A", "FIX.4.3", fields)
	gapMsg, err := ParseMessage(raw, dd)
	require.NoError(t, err)

	_, err = sess.HandleMessage(gapMsg)
	assert.Error(t, err)

	require.Len(t, r.sent, 3) // logon reply, ResendRequest, then the session-level Reject
	resend, err := ParseMessage(r.sent[1], dd)
	require.NoError(t, err)
	mt, _ := resend.MsgType()
	assert.Equal(t, tag.MsgTypeResendRequest, mt)
	begin, _ := resend.Body.GetString(tag.BeginSeqNo)
	end, _ := resend.Body.GetString(tag.EndSeqNo)
	assert.Equal(t, "2", begin)
	assert.Equal(t, "4", end)

	pending := sess.State().PendingResend()
	require.NotNil(t, pending)
	assert.Equal(t, 2, pending.Begin)
	assert.Equal(t, 4, pending.End)
}

func TestSessionTestRequestEchoesIDInHeartbeat(t *testing.T) {
	sess := newTestSession(t)
	r := &recordingResponder{}
	sess.OnConnectAccepted(r)

	_, err := sess.HandleMessage(counterpartyLogon(t, 1))
	require.NoError(t, err)

	dd := sessionTestDict(t)
	sendingTime := time.Now().UTC().Format("20060102-15:04:05.000")
	fields := fmt.Sprintf("34=2\x0149=FIXIMULATOR\x0152=%s\x0156=BANZAI\x01112=ping-1\x01", sendingTime)
	raw := buildMessage(t, "1", "FIX.4.3", fields)
	testReq, err := ParseMessage(raw, dd)
	require.NoError(t, err)

	_, err = sess.HandleMessage(testReq)
	require.NoError(t, err)

	require.Len(t, r.sent, 2)
	hb, err := ParseMessage(r.sent[1], dd)
	require.NoError(t, err)
	mt, _ := hb.MsgType()
	assert.Equal(t, tag.MsgTypeHeartbeat, mt)
	echoed, _ := hb.Body.GetString(tag.TestReqID)
	assert.Equal(t, "ping-1", echoed)
}

func TestSessionLogoutDisconnects(t *testing.T) {
	sess := newTestSession(t)
	r := &recordingResponder{}
	sess.OnConnectAccepted(r)

	_, err := sess.HandleMessage(counterpartyLogon(t, 1))
	require.NoError(t, err)

	dd := sessionTestDict(t)
	sendingTime := time.Now().UTC().Format("20060102-15:04:05.000")
	fields := fmt.Sprintf("34=2\x0149=FIXIMULATOR\x0152=%s\x0156=BANZAI\x01", sendingTime)
	raw := buildMessage(t, "5", "FIX.4.3", fields)
	logout, err := ParseMessage(raw, dd)
	require.NoError(t, err)

	_, err = sess.HandleMessage(logout)
	require.NoError(t, err)
	assert.Equal(t, PhaseDisconnected, sess.State().Phase())
}
