// Package config parses the engine's line-oriented settings file (spec
// §4.9, §6): a `[Default]` section followed by one or more `[Session]`
// sections, `key = value` pairs, optional quoting. This is the recognized
// key surface only — the file format itself is an external collaborator
// per spec.md §1 ("the TOML-style configuration file parser ... out of
// scope"); this hand-rolled reader mirrors the shape of fix-rs's own
// session_settings.rs rather than pulling in a TOML/INI library.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Recognized key names (spec §4.9).
const (
	KeyConnectionType      = "connection_type"
	KeyBeginString         = "begin_string"
	KeySenderCompID        = "sender_comp_id"
	KeyTargetCompID        = "target_comp_id"
	KeySenderSubID         = "sender_sub_id"
	KeySenderLocationID    = "sender_location_id"
	KeyTargetSubID         = "target_sub_id"
	KeyTargetLocationID    = "target_location_id"
	KeySessionQualifier    = "session_qualifier"
	KeySocketAcceptPort    = "socket_accept_port"
	KeySocketConnectHost   = "socket_connect_host"
	KeySocketConnectPort   = "socket_connect_port"
	KeyHeartbeatInterval   = "heartbeat_interval"
	KeyResetOnLogon        = "reset_on_logon"
	KeyResetOnLogout       = "reset_on_logout"
	KeyResetOnDisconnect   = "reset_on_disconnect"
	KeyDataDictionary      = "data_dictionary"
	KeyStartTime           = "start_time"
	KeyEndTime             = "end_time"
	KeyStartDay            = "start_day"
	KeyEndDay              = "end_day"
	KeyDefaultTimezone     = "default_timezone"
	// KeyReconnectInterval and KeyMaxLatency resolve spec §9 Open Questions
	// (a) and (b) with configurable defaults (SPEC_FULL.md Supplemented
	// Features).
	KeyReconnectInterval = "reconnect_interval"
	KeyMaxLatency        = "max_latency"
	// KeyValidateEnumValues is read into Settings.ValidateEnumVals (default
	// "Y"). No code consults that setting: received values are not checked
	// against the dictionary's enum domain, so ValueOutOfRange is never
	// raised for them whatever the value.
	KeyValidateEnumValues = "validate_enum_values"

	ConnectionTypeAcceptor  = "acceptor"
	ConnectionTypeInitiator = "initiator"

	defaultSectionName = "Default"
	sessionSectionName = "Session"
)

// Section is one `[Default]`/`[Session]` block's raw key/value pairs.
type Section map[string]string

// Settings is the parsed configuration file: one default section plus zero
// or more session sections, each pre-merged with the default so that every
// lookup is a plain map read (fix-rs's `get_or_default` flattened eagerly
// at load time instead of on every query).
type Settings struct {
	Default  Section
	Sessions []Section
}

// Load reads and validates a settings file from path.
func Load(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: open")
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a settings file from r.
func Parse(r io.Reader) (*Settings, error) {
	scanner := bufio.NewScanner(r)

	var sections []struct {
		name string
		body Section
	}
	var current *Section
	var currentName string

	flush := func() {
		if current != nil {
			sections = append(sections, struct {
				name string
				body Section
			}{currentName, *current})
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()
			currentName = strings.TrimSpace(line[1 : len(line)-1])
			body := Section{}
			current = &body
			continue
		}
		if current == nil {
			return nil, errors.New("config: key/value line before any section header")
		}
		key, value, ok := splitKV(line)
		if !ok {
			return nil, errors.Errorf("config: malformed line %q", line)
		}
		(*current)[key] = value
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "config: scan")
	}

	var def Section
	var rawSessions []Section
	for _, s := range sections {
		switch s.name {
		case defaultSectionName:
			def = s.body
		case sessionSectionName:
			rawSessions = append(rawSessions, s.body)
		default:
			return nil, errors.Errorf("config: unknown section %q", s.name)
		}
	}
	if def == nil {
		return nil, errors.New("config: no [Default] section found")
	}

	settings := &Settings{Default: def}
	if len(rawSessions) == 0 {
		settings.Sessions = []Section{mergeWithDefault(def, def)}
	} else {
		for _, s := range rawSessions {
			settings.Sessions = append(settings.Sessions, mergeWithDefault(s, def))
		}
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func mergeWithDefault(session, def Section) Section {
	merged := Section{}
	for k, v := range def {
		merged[k] = v
	}
	for k, v := range session {
		merged[k] = v
	}
	return merged
}

func splitKV(line string) (key, value string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	value = strings.Trim(value, `"`)
	return key, value, key != ""
}

// validate enforces the required-key and enum rules of spec §4.9: missing
// required keys or illegal enums fail the whole load.
func (s *Settings) validate() error {
	for i, sec := range s.Sessions {
		connType := sec[KeyConnectionType]
		if connType != ConnectionTypeAcceptor && connType != ConnectionTypeInitiator {
			return errors.Errorf("config: session %d: connection_type must be %q or %q, got %q", i, ConnectionTypeAcceptor, ConnectionTypeInitiator, connType)
		}
		begin := sec[KeyBeginString]
		switch begin {
		case "FIX.4.2", "FIX.4.3", "FIX.4.4":
		default:
			return errors.Errorf("config: session %d: begin_string must be one of FIX.4.2/4.3/4.4, got %q", i, begin)
		}
		if sec[KeySenderCompID] == "" || sec[KeyTargetCompID] == "" {
			return errors.Errorf("config: session %d: sender_comp_id and target_comp_id are required", i)
		}
		if connType == ConnectionTypeAcceptor {
			if _, err := sec.Uint16(KeySocketAcceptPort); err != nil {
				return errors.Errorf("config: session %d: acceptor requires a numeric socket_accept_port", i)
			}
		} else {
			if sec[KeySocketConnectHost] == "" {
				return errors.Errorf("config: session %d: initiator requires socket_connect_host", i)
			}
			if _, err := sec.Uint16(KeySocketConnectPort); err != nil {
				return errors.Errorf("config: session %d: initiator requires a numeric socket_connect_port", i)
			}
		}
	}
	return nil
}

// Bool parses a "Y"/"N" or "true"/"false" value, defaulting when absent.
func (s Section) Bool(key string, def bool) bool {
	v, ok := s[key]
	if !ok {
		return def
	}
	switch strings.ToUpper(v) {
	case "Y", "TRUE":
		return true
	case "N", "FALSE":
		return false
	default:
		return def
	}
}

// Int parses an integer value, defaulting when absent or malformed.
func (s Section) Int(key string, def int) int {
	v, ok := s[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Uint16 parses a port number.
func (s Section) Uint16(key string) (uint16, error) {
	v, ok := s[key]
	if !ok {
		return 0, fmt.Errorf("config: %s not set", key)
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "config: %s", key)
	}
	return uint16(n), nil
}
