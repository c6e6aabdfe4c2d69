package fixengine

import (
	"strings"

	"github.com/abquickfix/fixengine/tag"
)

// SessionID identifies one logical FIX session: a five-to-seven-tuple of
// BeginString, sender/target CompID plus their optional Sub/Location
// qualifiers, and an optional session qualifier for disambiguating multiple
// sessions between the same two counterparties (spec §3 SessionId).
// SessionID is a comparable struct, so it can be used directly as a Go map
// key; == and map hashing compare every field, so two IDs whose canonical
// strings coincide (e.g. a lone SubID vs a lone LocationID with the same
// value) are not equal.
type SessionID struct {
	BeginString string
	SenderCompID string
	SenderSubID string
	SenderLocationID string
	TargetCompID string
	TargetSubID string
	TargetLocationID string
	Qualifier string

	canonical string
}

// NewSessionID builds a SessionID from its required tuple plus the optional
// Sub/Location/Qualifier fields, populating the canonical form eagerly so
// every subsequent comparison and registry lookup is a plain string compare
// (spec §9 design note: "a constructor with explicit optional parameters and
// a derived canonical string").
func NewSessionID(beginString, senderCompID, senderSubID, senderLocationID, targetCompID, targetSubID, targetLocationID, qualifier string) SessionID {
	id := SessionID{
		BeginString:      beginString,
		SenderCompID:     senderCompID,
		SenderSubID:      senderSubID,
		SenderLocationID: senderLocationID,
		TargetCompID:     targetCompID,
		TargetSubID:      targetSubID,
		TargetLocationID: targetLocationID,
		Qualifier:        qualifier,
	}
	id.canonical = id.buildCanonical()
	return id
}

func (s SessionID) buildCanonical() string {
	var b strings.Builder
	b.WriteString(s.BeginString)
	b.WriteByte(':')
	b.WriteString(s.SenderCompID)
	if s.SenderSubID != "" {
		b.WriteByte('/')
		b.WriteString(s.SenderSubID)
	}
	if s.SenderLocationID != "" {
		b.WriteByte('/')
		b.WriteString(s.SenderLocationID)
	}
	b.WriteString("->")
	b.WriteString(s.TargetCompID)
	if s.TargetSubID != "" {
		b.WriteByte('/')
		b.WriteString(s.TargetSubID)
	}
	if s.TargetLocationID != "" {
		b.WriteByte('/')
		b.WriteString(s.TargetLocationID)
	}
	if s.Qualifier != "" {
		b.WriteByte('/')
		b.WriteString(s.Qualifier)
	}
	return b.String()
}

// String returns the canonical
// BEGIN:SENDER[/SUB][/LOC]->TARGET[/SUB][/LOC][/QUALIFIER] textual form
// (spec §3).
func (s SessionID) String() string { return s.canonical }

// Reversed swaps sender and target, producing the SessionID a counterparty
// sees for the same logical session. Incoming messages are routed by
// constructing this reversed key from their header fields and looking it up
// in the local registry (spec §4.5, §6).
func (s SessionID) Reversed() SessionID {
	return NewSessionID(
		s.BeginString,
		s.TargetCompID, s.TargetSubID, s.TargetLocationID,
		s.SenderCompID, s.SenderSubID, s.SenderLocationID,
		s.Qualifier,
	)
}

// sessionIDFromHeader extracts tags 8, 49, 50, 142, 56, 57, 143 from an
// already-parsed header FieldMap and builds the SessionID exactly as the
// counterparty identifies itself — i.e. sender/target as named on the wire,
// not yet reversed. Callers that need the local routing key call Reversed()
// on the result (spec §4.5).
func sessionIDFromHeader(header *FieldMap) SessionID {
	get := func(t tag.Tag) string {
		v, _ := header.GetString(t)
		return v
	}
	return NewSessionID(
		get(tag.BeginString),
		get(tag.SenderCompID), get(tag.SenderSubID), get(tag.SenderLocationID),
		get(tag.TargetCompID), get(tag.TargetSubID), get(tag.TargetLocationID),
		"",
	)
}
