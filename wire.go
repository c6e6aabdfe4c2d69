package fixengine

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"

	"github.com/abquickfix/fixengine/tag"
)

// SOH is the FIX field separator, byte 0x01 (spec Glossary).
const SOH = byte(0x01)

// ReadMessage frames one candidate FIX message off r: it reads field by
// field until the CheckSum field (tag 10) is read, matching spec §4.1's
// framing rule. The returned bytes include the full message, `8=...` to the
// terminating SOH after the checksum.
func ReadMessage(r *bufio.Reader) ([]byte, error) {
	var out bytes.Buffer
	for {
		chunk, err := r.ReadBytes(SOH)
		if err != nil {
			return nil, err
		}
		out.Write(chunk)
		eq := bytes.IndexByte(chunk, '=')
		if eq > 0 && string(chunk[:eq]) == "10" {
			return out.Bytes(), nil
		}
	}
}

// rawToken is one tag=value pair as tokenised directly off the wire,
// before any dictionary-driven interpretation.
type rawToken struct {
	Tag   tag.Tag
	Value []byte
}

// tokenQueue is the single mutable deque threaded through header, body,
// trailer and group parsing (design note §9): a cheap single-token
// push-back is all group parsing needs to hand an unconsumed field back to
// its caller.
type tokenQueue struct {
	tokens []rawToken
}

func (q *tokenQueue) empty() bool { return len(q.tokens) == 0 }

func (q *tokenQueue) next() (rawToken, bool) {
	if q.empty() {
		return rawToken{}, false
	}
	t := q.tokens[0]
	q.tokens = q.tokens[1:]
	return t, true
}

func (q *tokenQueue) pushBack(t rawToken) {
	q.tokens = append([]rawToken{t}, q.tokens...)
}

// tokenize splits a framed message into its raw tag=value tokens (spec
// §4.1). Framing (body length, checksum) must already have been verified;
// tokenize only concerns itself with tag/value syntax.
func tokenize(raw []byte) ([]rawToken, error) {
	var tokens []rawToken
	for len(raw) > 0 {
		idx := bytes.IndexByte(raw, SOH)
		if idx == -1 {
			return nil, newInvalidBodyLengthError(0, 0)
		}
		field := raw[:idx]
		raw = raw[idx+1:]

		eq := bytes.IndexByte(field, '=')
		if eq <= 0 {
			return nil, invalidTag(0)
		}
		n, err := strconv.Atoi(string(field[:eq]))
		if err != nil {
			return nil, invalidTag(0)
		}
		value := field[eq+1:]
		if len(value) == 0 {
			return nil, tagSpecifiedWithoutValue(n)
		}
		tokens = append(tokens, rawToken{Tag: tag.Tag(n), Value: value})
	}
	return tokens, nil
}

// verifyFraming checks BodyLength (tag 9) and CheckSum (tag 10) per spec
// §4.1/§6, scanning raw bytes directly rather than via tokenize so that a
// bad checksum is caught even if the body happens to tokenise cleanly.
func verifyFraming(raw []byte) error {
	firstSOH := bytes.IndexByte(raw, SOH)
	if firstSOH == -1 {
		return newInvalidBodyLengthError(0, 0)
	}
	rest := raw[firstSOH+1:]
	secondSOH := bytes.IndexByte(rest, SOH)
	if secondSOH == -1 {
		return newInvalidBodyLengthError(0, 0)
	}
	bodyLenField := rest[:secondSOH]
	eq := bytes.IndexByte(bodyLenField, '=')
	if eq <= 0 || string(bodyLenField[:eq]) != "9" {
		return newInvalidBodyLengthError(0, 0)
	}
	declared, err := strconv.Atoi(string(bodyLenField[eq+1:]))
	if err != nil {
		return newInvalidBodyLengthError(0, 0)
	}
	bodyStart := firstSOH + 1 + secondSOH + 1

	checksumFieldIdx := -1
	for i := len(raw) - 4; i > bodyStart; i-- {
		if raw[i-1] == SOH && raw[i] == '1' && raw[i+1] == '0' && raw[i+2] == '=' {
			checksumFieldIdx = i
			break
		}
	}
	if checksumFieldIdx == -1 {
		return newInvalidBodyLengthError(declared, 0)
	}

	actualBodyLen := checksumFieldIdx - bodyStart
	if actualBodyLen != declared {
		return newInvalidBodyLengthError(declared, actualBodyLen)
	}

	sum := 0
	for _, b := range raw[:checksumFieldIdx] {
		sum += int(b)
	}
	sum %= 256
	expectedChecksum := fmt.Sprintf("%03d", sum)

	checksumField := raw[checksumFieldIdx:]
	sohEnd := bytes.IndexByte(checksumField, SOH)
	if sohEnd == -1 {
		return newInvalidChecksumError(expectedChecksum, "")
	}
	actualChecksum := string(checksumField[3:sohEnd])
	if actualChecksum != expectedChecksum {
		return newInvalidChecksumError(expectedChecksum, actualChecksum)
	}
	return nil
}
