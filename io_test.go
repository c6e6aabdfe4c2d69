package fixengine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abquickfix/fixengine/internal/log"
	"github.com/abquickfix/fixengine/store"
)

func TestScanSessionHeaderExtractsRoutingTagsOnly(t *testing.T) {
	raw := buildMessage(t, "A", "FIX.4.3",
		"34=1\x0149=BANZAI\x0152=20221006-08:43:36.522\x0156=FIXIMULATOR\x0198=0\x01108=30\x01")

	header, err := scanSessionHeader(raw)
	require.NoError(t, err)

	beginString, ok := header.GetString(8)
	require.True(t, ok)
	assert.Equal(t, "FIX.4.3", beginString)

	sender, ok := header.GetString(49)
	require.True(t, ok)
	assert.Equal(t, "BANZAI", sender)

	target, ok := header.GetString(56)
	require.True(t, ok)
	assert.Equal(t, "FIXIMULATOR", target)

	// Non-routing tags (e.g. MsgSeqNum=34, HeartBtInt=108) must not appear.
	assert.False(t, header.Has(34))
	assert.False(t, header.Has(108))
}

func TestScanSessionHeaderIncludesSubAndLocationIDs(t *testing.T) {
	fields := "34=1\x0149=BANZAI\x0150=TRADE\x01142=NY\x0152=20221006-08:43:36.522\x0156=FIXIMULATOR\x0157=ALLOC\x01143=LON\x0198=0\x01108=30\x01"
	raw := buildMessage(t, "A", "FIX.4.3", fields)

	header, err := scanSessionHeader(raw)
	require.NoError(t, err)

	sub, ok := header.GetString(50)
	require.True(t, ok)
	assert.Equal(t, "TRADE", sub)

	loc, ok := header.GetString(142)
	require.True(t, ok)
	assert.Equal(t, "NY", loc)

	targetSub, ok := header.GetString(57)
	require.True(t, ok)
	assert.Equal(t, "ALLOC", targetSub)

	targetLoc, ok := header.GetString(143)
	require.True(t, ok)
	assert.Equal(t, "LON", targetLoc)
}

func TestScanSessionHeaderRejectsGarbage(t *testing.T) {
	_, err := scanSessionHeader([]byte("not a fix message"))
	assert.Error(t, err)
}

func TestEngineRoutesFrameToRegisteredSession(t *testing.T) {
	dd := sessionTestDict(t)
	id := NewSessionID("FIX.4.3", "BANZAI", "", "", "FIXIMULATOR", "", "", "")
	sess := NewSession(id, dd, DefaultSettings(), NewNonStopSchedule(), store.NewMemStore(), log.NopLog{})
	registry := NewRegistry()
	registry.Register(sess)

	r := &recordingResponder{}
	engine := NewEngine(registry, nil)

	sendingTime := time.Now().UTC().Format("20060102-15:04:05.000")
	fields := fmt.Sprintf("34=1\x0149=FIXIMULATOR\x0152=%s\x0156=BANZAI\x0198=0\x01108=30\x01", sendingTime)
	raw := buildMessage(t, "A", "FIX.4.3", fields)

	engine.handleFrame(inboundFrame{raw: raw, responder: r})

	assert.Equal(t, PhaseActive, sess.State().Phase())
	require.Len(t, r.sent, 1)
}
