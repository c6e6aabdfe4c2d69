package fixengine

import (
	"fmt"

	"github.com/pkg/errors"
)

// RejectReason is a session-level reject reason as carried on the wire in
// tag 373 of a Reject (MsgType=3) message (spec §7).
type RejectReason int

const (
	RejectReasonInvalidTag                         RejectReason = 0
	RejectReasonRequiredTagMissing                 RejectReason = 1
	RejectReasonUndefinedTag                       RejectReason = 2
	RejectReasonTagNotDefinedForMsgType            RejectReason = 3
	RejectReasonTagSpecifiedWithoutValue           RejectReason = 4
	RejectReasonValueOutOfRange                    RejectReason = 5
	RejectReasonIncorrectDataFormatForValue        RejectReason = 6
	RejectReasonDecryptionProblem                  RejectReason = 7
	RejectReasonSignatureProblem                   RejectReason = 8
	RejectReasonCompIdProblem                      RejectReason = 9
	RejectReasonSendingTimeAccuracyProblem         RejectReason = 10
	RejectReasonInvalidMessageType                 RejectReason = 11
	RejectReasonXmlValidationError                 RejectReason = 12
	RejectReasonTagAppearsMoreThanOnce              RejectReason = 13
	RejectReasonTagSpecifiedOutOfOrder              RejectReason = 14
	RejectReasonRepeatingGroupsOutOfOrder            RejectReason = 15
	RejectReasonIncorrectNumInGroupCount            RejectReason = 16
	RejectReasonNonDataFieldIncludesSOH             RejectReason = 17
	RejectReasonInvalidBodyLength                   RejectReason = -1
	RejectReasonInvalidChecksum                     RejectReason = -2
)

var rejectReasonText = map[RejectReason]string{
	RejectReasonInvalidTag:                  "Invalid tag number",
	RejectReasonRequiredTagMissing:           "Required tag missing",
	RejectReasonUndefinedTag:                 "Tag not defined",
	RejectReasonTagNotDefinedForMsgType:      "Tag specified not defined for this message type",
	RejectReasonTagSpecifiedWithoutValue:     "Tag specified without a value",
	RejectReasonValueOutOfRange:              "Value is incorrect (out of range) for this tag",
	RejectReasonIncorrectDataFormatForValue:  "Incorrect data format for value",
	RejectReasonDecryptionProblem:            "Decryption problem",
	RejectReasonSignatureProblem:             "Signature problem",
	RejectReasonCompIdProblem:                "CompID problem",
	RejectReasonSendingTimeAccuracyProblem:   "SendingTime accuracy problem",
	RejectReasonInvalidMessageType:           "Invalid MsgType",
	RejectReasonXmlValidationError:           "XML validation error",
	RejectReasonTagAppearsMoreThanOnce:       "Tag appears more than once",
	RejectReasonTagSpecifiedOutOfOrder:       "Tag specified out of order",
	RejectReasonRepeatingGroupsOutOfOrder:    "Repeating group fields out of order",
	RejectReasonIncorrectNumInGroupCount:     "Incorrect NumInGroup count for repeating group",
	RejectReasonNonDataFieldIncludesSOH:      "Non-data value includes field delimiter (SOH)",
	RejectReasonInvalidBodyLength:            "Invalid body length",
	RejectReasonInvalidChecksum:              "Invalid checksum",
}

func (r RejectReason) String() string {
	if s, ok := rejectReasonText[r]; ok {
		return s
	}
	return fmt.Sprintf("RejectReason(%d)", int(r))
}

// MessageRejectError is returned by parsing, verification or application
// callbacks when a message must be rejected at the session level instead
// of being delivered to the application.
type MessageRejectError interface {
	error
	RejectReason() RejectReason
	RefTagID() (int, bool)
	BusinessRejectRefID() (string, bool)
}

type messageRejectError struct {
	reason  RejectReason
	text    string
	refTag  int
	hasTag  bool
}

func (e messageRejectError) Error() string {
	if e.text != "" {
		return e.text
	}
	return e.reason.String()
}

func (e messageRejectError) RejectReason() RejectReason { return e.reason }

func (e messageRejectError) RefTagID() (int, bool) { return e.refTag, e.hasTag }

func (e messageRejectError) BusinessRejectRefID() (string, bool) { return "", false }

// NewMessageRejectError builds a session-level reject carrying no offending
// tag reference (e.g. InvalidMessageType).
func NewMessageRejectError(text string, reason RejectReason) MessageRejectError {
	return messageRejectError{reason: reason, text: text}
}

// NewMessageRejectErrorForTag builds a session-level reject that references
// the offending tag, as required for most of the §7 reject reasons.
func NewMessageRejectErrorForTag(text string, reason RejectReason, tagID int) MessageRejectError {
	return messageRejectError{reason: reason, text: text, refTag: tagID, hasTag: true}
}

// Parse-level sentinel constructors. These format their message with
// github.com/pkg/errors and keep only its text; the MessageRejectError
// surfaces the wire-facing reason and carries no stack trace.
func invalidTag(tagID int) MessageRejectError {
	return NewMessageRejectErrorForTag(
		errors.Errorf("invalid tag number %d", tagID).Error(),
		RejectReasonInvalidTag, tagID)
}

func tagSpecifiedWithoutValue(tagID int) MessageRejectError {
	return NewMessageRejectErrorForTag(
		errors.Errorf("tag %d specified without a value", tagID).Error(),
		RejectReasonTagSpecifiedWithoutValue, tagID)
}

func tagSpecifiedOutOfOrder(tagID int) MessageRejectError {
	return NewMessageRejectErrorForTag(
		errors.Errorf("tag %d specified out of order", tagID).Error(),
		RejectReasonTagSpecifiedOutOfOrder, tagID)
}

func tagNotDefinedForMsgType(tagID int) MessageRejectError {
	return NewMessageRejectErrorForTag(
		errors.Errorf("tag %d not defined for this message type", tagID).Error(),
		RejectReasonTagNotDefinedForMsgType, tagID)
}

func requiredTagMissing(tagID int) MessageRejectError {
	return NewMessageRejectErrorForTag(
		errors.Errorf("required tag %d missing", tagID).Error(),
		RejectReasonRequiredTagMissing, tagID)
}

func incorrectDataFormat(tagID int, cause error) MessageRejectError {
	return NewMessageRejectErrorForTag(
		errors.Wrapf(cause, "tag %d incorrect data format", tagID).Error(),
		RejectReasonIncorrectDataFormatForValue, tagID)
}

func incorrectNumInGroupCount(tagID int) MessageRejectError {
	return NewMessageRejectErrorForTag(
		errors.Errorf("incorrect NumInGroup count for group starting at tag %d", tagID).Error(),
		RejectReasonIncorrectNumInGroupCount, tagID)
}

func repeatingGroupsOutOfOrder(tagID int) MessageRejectError {
	return NewMessageRejectErrorForTag(
		errors.Errorf("repeating group fields out of order at tag %d", tagID).Error(),
		RejectReasonRepeatingGroupsOutOfOrder, tagID)
}

func valueOutOfRange(tagID int, value string) MessageRejectError {
	return NewMessageRejectErrorForTag(
		errors.Errorf("tag %d value %q out of range", tagID, value).Error(),
		RejectReasonValueOutOfRange, tagID)
}

// FramingError signals a C1 wire-codec failure (body length / checksum /
// tokenisation) discovered before a Message even exists, so there is no
// offending tag to reference yet.
type FramingError struct {
	Reason RejectReason
	cause  error
}

func (e FramingError) Error() string { return e.cause.Error() }
func (e FramingError) Unwrap() error { return e.cause }

func newInvalidBodyLengthError(expected, actual int) FramingError {
	return FramingError{
		Reason: RejectReasonInvalidBodyLength,
		cause:  errors.Errorf("invalid body length: expected %d, got %d", expected, actual),
	}
}

func newInvalidChecksumError(expected, actual string) FramingError {
	return FramingError{
		Reason: RejectReasonInvalidChecksum,
		cause:  errors.Errorf("invalid checksum: expected %s, got %s", expected, actual),
	}
}
