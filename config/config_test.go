package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[Default]
connection_type = initiator
begin_string = FIX.4.2
heartbeat_interval = 30

[Session]
sender_comp_id = BUYER
target_comp_id = SELLER
socket_connect_host = 127.0.0.1
socket_connect_port = 5001

[Session]
connection_type = acceptor
sender_comp_id = SELLER2
target_comp_id = BUYER2
socket_accept_port = 5002
`

func TestParseMergesDefaultsIntoEachSession(t *testing.T) {
	settings, err := Parse(strings.NewReader(sampleConfig))
	require.NoError(t, err)
	require.Len(t, settings.Sessions, 2)

	first := settings.Sessions[0]
	assert.Equal(t, ConnectionTypeInitiator, first[KeyConnectionType])
	assert.Equal(t, "FIX.4.2", first[KeyBeginString])
	assert.Equal(t, "30", first[KeyHeartbeatInterval])
	assert.Equal(t, "BUYER", first[KeySenderCompID])

	second := settings.Sessions[1]
	assert.Equal(t, ConnectionTypeAcceptor, second[KeyConnectionType])
	assert.Equal(t, "FIX.4.2", second[KeyBeginString]) // inherited from Default
	assert.Equal(t, "SELLER2", second[KeySenderCompID])
}

func TestParseRejectsKeyValueBeforeAnySection(t *testing.T) {
	_, err := Parse(strings.NewReader("sender_comp_id = BUYER\n[Default]\n"))
	assert.Error(t, err)
}

func TestParseRejectsUnknownSectionName(t *testing.T) {
	_, err := Parse(strings.NewReader("[Default]\nconnection_type = initiator\n[Bogus]\nfoo = bar\n"))
	assert.Error(t, err)
}

func TestParseRejectsMissingDefaultSection(t *testing.T) {
	_, err := Parse(strings.NewReader("[Session]\nconnection_type = initiator\n"))
	assert.Error(t, err)
}

func TestValidateRejectsBadConnectionType(t *testing.T) {
	bad := `
[Default]
connection_type = carrier_pigeon
begin_string = FIX.4.2
sender_comp_id = A
target_comp_id = B
socket_connect_host = localhost
socket_connect_port = 1
`
	_, err := Parse(strings.NewReader(bad))
	assert.Error(t, err)
}

func TestValidateRequiresNumericAcceptPort(t *testing.T) {
	bad := `
[Default]
connection_type = acceptor
begin_string = FIX.4.3
sender_comp_id = A
target_comp_id = B
socket_accept_port = not-a-number
`
	_, err := Parse(strings.NewReader(bad))
	assert.Error(t, err)
}

func TestSectionBoolAndIntHelpers(t *testing.T) {
	sec := Section{
		KeyResetOnLogon:     "Y",
		KeyHeartbeatInterval: "45",
	}
	assert.True(t, sec.Bool(KeyResetOnLogon, false))
	assert.False(t, sec.Bool(KeyResetOnLogout, false))
	assert.Equal(t, 45, sec.Int(KeyHeartbeatInterval, 30))
	assert.Equal(t, 30, sec.Int(KeyMaxLatency, 30))
}

func TestSectionUint16(t *testing.T) {
	sec := Section{KeySocketAcceptPort: "5001"}
	port, err := sec.Uint16(KeySocketAcceptPort)
	require.NoError(t, err)
	assert.EqualValues(t, 5001, port)

	_, err = sec.Uint16(KeySocketConnectPort)
	assert.Error(t, err)
}
