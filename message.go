package fixengine

import (
	"bytes"
	"fmt"
	"time"

	"github.com/abquickfix/fixengine/datadictionary"
	"github.com/abquickfix/fixengine/tag"
)

// Message is the parsed, structured form of one FIX wire message (spec §3):
// an ordered header, body and trailer, each possibly carrying repeating
// groups.
type Message struct {
	Header  *FieldMap
	Body    *FieldMap
	Trailer *FieldMap

	// ReceiveTime is when this message was read off the socket.
	ReceiveTime time.Time

	// rawBytes caches the exact wire bytes this Message was parsed from, or
	// the bytes last produced by render, whichever happened most recently.
	rawBytes []byte
}

// MsgType returns the value of header tag 35.
func (m *Message) MsgType() (string, bool) { return m.Header.GetString(tag.MsgType) }

// String returns the cached wire representation.
func (m *Message) String() string { return string(m.rawBytes) }

// ParseMessage frames-checks, tokenises and structurally parses raw into a
// Message using dd to resolve field/group legality (spec §4.1, §4.4).
func ParseMessage(raw []byte, dd *datadictionary.DataDictionary) (*Message, error) {
	if err := verifyFraming(raw); err != nil {
		return nil, err
	}

	tokens, err := tokenize(raw)
	if err != nil {
		return nil, err
	}
	q := &tokenQueue{tokens: tokens}

	msg := &Message{
		Header:      NewHeaderFieldMap(),
		Body:        NewFieldMap(),
		Trailer:     NewTrailerFieldMap(),
		rawBytes:    raw,
		ReceiveTime: time.Now().UTC(),
	}

	headerDef, _ := dd.Message(tag.HeaderMsgType)

	// The stream MUST begin with BeginString, BodyLength, MsgType in that
	// exact order (spec §4.4).
	for _, want := range []tag.Tag{tag.BeginString, tag.BodyLength, tag.MsgType} {
		tok, ok := q.next()
		if !ok || tok.Tag != want {
			return nil, tagSpecifiedOutOfOrder(int(want))
		}
		msg.Header.SetBytes(tok.Tag, tok.Value)
	}

	msgType, _ := msg.Header.GetString(tag.MsgType)
	msgDef, ok := dd.Message(msgType)
	if !ok {
		return nil, NewMessageRejectError(fmt.Sprintf("invalid MsgType %q", msgType), RejectReasonInvalidMessageType)
	}
	trailerDef, _ := dd.Message(tag.TrailerMsgType)

	isHeaderTag := func(t tag.Tag) bool { return headerDef != nil && headerDef.Fields[t] }
	isTrailerTag := func(t tag.Tag) bool { return trailerDef != nil && trailerDef.Fields[t] }

	// Header: consume further header-field tokens (including header-scoped
	// groups such as NoHops) until a non-header tag appears.
	for {
		tok, ok := q.next()
		if !ok {
			return nil, requiredTagMissing(int(tag.CheckSum))
		}
		if isTrailerTag(tok.Tag) {
			q.pushBack(tok)
			break
		}
		if !isHeaderTag(tok.Tag) {
			q.pushBack(tok)
			break
		}
		if headerDef.IsGroup(tok.Tag) {
			if err := parseGroupField(q, headerDef, msg.Header, tok); err != nil {
				return nil, err
			}
			continue
		}
		msg.Header.SetBytes(tok.Tag, tok.Value)
	}

	// Body: consume until a trailer tag appears.
	for {
		tok, ok := q.next()
		if !ok {
			break
		}
		if isTrailerTag(tok.Tag) {
			q.pushBack(tok)
			break
		}
		if isHeaderTag(tok.Tag) {
			return nil, tagSpecifiedOutOfOrder(int(tok.Tag))
		}
		if msgDef.IsGroup(tok.Tag) {
			if err := parseGroupField(q, msgDef, msg.Body, tok); err != nil {
				return nil, err
			}
			continue
		}
		msg.Body.SetBytes(tok.Tag, tok.Value)
	}

	// Trailer: everything remaining must be a trailer field, CheckSum last.
	for {
		tok, ok := q.next()
		if !ok {
			break
		}
		if !isTrailerTag(tok.Tag) {
			return nil, tagSpecifiedOutOfOrder(int(tok.Tag))
		}
		msg.Trailer.SetBytes(tok.Tag, tok.Value)
	}
	if !msg.Trailer.Has(tag.CheckSum) {
		return nil, requiredTagMissing(int(tag.CheckSum))
	}

	if headerDef != nil {
		if err := validateRequired(msg.Header, headerDef); err != nil {
			return nil, err
		}
	}
	if err := validateRequired(msg.Body, msgDef); err != nil {
		return nil, err
	}

	return msg, nil
}

// parseGroupField parses the repeating group introduced by countTok into
// target (spec §4.4 "Group parsing" — the algorithmic heart of the parser).
func parseGroupField(q *tokenQueue, def *datadictionary.MessageDef, target *FieldMap, countTok rawToken) error {
	gi, ok := def.Groups[countTok.Tag]
	if !ok {
		return tagNotDefinedForMsgType(int(countTok.Tag))
	}

	group, err := parseGroupInstances(q, gi, countTok)
	if err != nil {
		return err
	}
	target.groups[countTok.Tag] = group
	if _, exists := target.values[countTok.Tag]; !exists {
		target.order = append(target.order, countTok.Tag)
	}
	target.values[countTok.Tag] = nil
	return nil
}

func parseGroupInstances(q *tokenQueue, gi *datadictionary.GroupInfo, countTok rawToken) (*Group, error) {
	iv := &IntValue{}
	if err := iv.readString(string(countTok.Value)); err != nil {
		return nil, incorrectDataFormat(int(countTok.Tag), err)
	}
	n := iv.Value

	group := NewGroup(countTok.Tag, gi.Delimiter)
	instanceIdx := -1
	prevOffset := -1
	var current *FieldMap

	for {
		tok, ok := q.next()
		if !ok {
			break
		}

		switch {
		case tok.Tag == gi.Delimiter:
			instanceIdx++
			if instanceIdx >= n {
				return nil, incorrectNumInGroupCount(int(countTok.Tag))
			}
			prevOffset = -1
			current = group.AddInstance()
			if gi.Inner.IsGroup(tok.Tag) {
				if err := parseGroupField(q, gi.Inner, current, tok); err != nil {
					return nil, err
				}
			} else {
				current.SetBytes(tok.Tag, tok.Value)
				prevOffset = gi.Inner.OffsetOf(tok.Tag)
			}

		case gi.Inner.IsGroup(tok.Tag):
			if instanceIdx < 0 {
				return nil, requiredTagMissing(int(tok.Tag))
			}
			if err := parseGroupField(q, gi.Inner, current, tok); err != nil {
				return nil, err
			}

		case gi.Inner.Fields[tok.Tag]:
			if instanceIdx < 0 {
				return nil, requiredTagMissing(int(tok.Tag))
			}
			offset := gi.Inner.OffsetOf(tok.Tag)
			if offset < prevOffset {
				return nil, repeatingGroupsOutOfOrder(int(tok.Tag))
			}
			current.SetBytes(tok.Tag, tok.Value)
			prevOffset = offset

		default:
			q.pushBack(tok)
			if instanceIdx+1 != n {
				return nil, incorrectNumInGroupCount(int(countTok.Tag))
			}
			return group, nil
		}
	}

	if instanceIdx+1 != n {
		return nil, incorrectNumInGroupCount(int(countTok.Tag))
	}
	return group, nil
}

// render produces the final wire bytes for msg: it stamps BodyLength and
// CheckSum from the already-assembled header/body/trailer content, per
// spec §4.4/§6. BodyLength counts every byte from immediately after the
// BodyLength field's own terminating SOH up to and including the SOH
// preceding CheckSum: MsgType onward in the header, the full body, and the
// trailer excluding CheckSum itself.
func render(msg *Message) []byte {
	var bodyBuf bytes.Buffer
	msg.Body.write(&bodyBuf)

	headerWithoutBeginAndLen := fieldsExcluding(msg.Header, tag.BeginString, tag.BodyLength)
	trailerWithoutCheckSum := fieldsExcluding(msg.Trailer, tag.CheckSum)

	length := len(headerWithoutBeginAndLen) + bodyBuf.Len() + len(trailerWithoutCheckSum)
	msg.Header.Set(tag.BodyLength, fmt.Sprintf("%d", length))

	var preChecksum bytes.Buffer
	msg.Header.write(&preChecksum)
	preChecksum.Write(bodyBuf.Bytes())
	preChecksum.Write(trailerWithoutCheckSum)

	sum := 0
	for _, b := range preChecksum.Bytes() {
		sum += int(b)
	}
	sum %= 256
	msg.Trailer.Set(tag.CheckSum, fmt.Sprintf("%03d", sum))

	var final bytes.Buffer
	msg.Header.write(&final)
	final.Write(bodyBuf.Bytes())
	msg.Trailer.write(&final)

	msg.rawBytes = final.Bytes()
	return msg.rawBytes
}

// fieldsExcluding renders m's fields in Iter order, skipping the given
// tags, as raw "tag=value\x01" bytes.
func fieldsExcluding(m *FieldMap, exclude ...tag.Tag) []byte {
	skip := make(map[tag.Tag]bool, len(exclude))
	for _, t := range exclude {
		skip[t] = true
	}
	var b bytes.Buffer
	for _, f := range m.Iter() {
		if skip[f.Tag] {
			continue
		}
		b.WriteString(fmt.Sprintf("%d", int(f.Tag)))
		b.WriteByte('=')
		b.Write(f.Value)
		b.WriteByte(SOH)
	}
	return b.Bytes()
}
