// Package tag defines the well-known numeric FIX field tags used by the
// engine's header/trailer handling and session layer. Application-level
// tags beyond these are resolved dynamically through the data dictionary
// rather than declared here.
package tag

// Tag is a FIX field tag number.
type Tag int

// Session-common header, trailer and administrative tags referenced
// directly by the parser, session state machine and schedule. Application
// tags are looked up through the data dictionary instead of being
// enumerated here.
const (
	BeginString          Tag = 8
	BodyLength           Tag = 9
	MsgType              Tag = 35
	SenderCompID         Tag = 49
	TargetCompID         Tag = 56
	OnBehalfOfCompID     Tag = 115
	DeliverToCompID      Tag = 128
	SecureDataLen        Tag = 90
	SecureData           Tag = 91
	MsgSeqNum            Tag = 34
	SenderSubID          Tag = 50
	SenderLocationID     Tag = 142
	TargetSubID          Tag = 57
	TargetLocationID     Tag = 143
	OnBehalfOfSubID      Tag = 116
	OnBehalfOfLocationID Tag = 144
	DeliverToSubID       Tag = 129
	DeliverToLocationID  Tag = 145
	PossDupFlag          Tag = 43
	PossResend           Tag = 97
	SendingTime          Tag = 52
	OrigSendingTime      Tag = 122
	XmlDataLen           Tag = 212
	XmlData              Tag = 213
	MessageEncoding      Tag = 347
	LastMsgSeqNumProcessed Tag = 369
	CheckSum             Tag = 10

	EncryptMethod   Tag = 98
	HeartBtInt      Tag = 108
	RawDataLength   Tag = 95
	RawData         Tag = 96
	ResetSeqNumFlag Tag = 141
	NextExpectedMsgSeqNum Tag = 789

	TestReqID  Tag = 112
	BeginSeqNo Tag = 7
	EndSeqNo   Tag = 16
	NewSeqNo   Tag = 36
	GapFillFlag Tag = 123

	RefSeqNum         Tag = 45
	RefTagID          Tag = 371
	RefMsgType        Tag = 372
	SessionRejectReason Tag = 373
	Text              Tag = 58

	NoHops         Tag = 627
	HopCompID      Tag = 628
	HopSendingTime Tag = 629
	HopRefID       Tag = 630
)

// FIX 4.2 MassQuote application tags, kept here as the sole
// application-level tag group the engine declares outside the data
// dictionary, for the typed fix42.MassQuote accessor (SPEC_FULL.md MODULE
// MAP: "showing the typed-accessor pattern on top of the generic
// FieldMap").
const (
	QuoteReqID         Tag = 131
	QuoteID            Tag = 117
	QuoteResponseLevel Tag = 301
	DefBidSize         Tag = 293
	DefOfferSize       Tag = 294
	NoQuoteSets        Tag = 296
	QuoteSetID         Tag = 302
)

// FIX message types for session-level (administrative) messages.
const (
	MsgTypeHeartbeat      = "0"
	MsgTypeTestRequest    = "1"
	MsgTypeResendRequest  = "2"
	MsgTypeReject         = "3"
	MsgTypeSequenceReset  = "4"
	MsgTypeLogout         = "5"
	MsgTypeLogon          = "A"
)

// Synthetic msg_type keys used by the data dictionary for the sections
// common to every message (§3 DataDictionary).
const (
	HeaderMsgType  = "header"
	TrailerMsgType = "trailer"
)

// headerTags and trailerTags are consulted by IsHeader/IsTrailer to
// classify a tag by the fixed FIX header/trailer convention without a
// dictionary. The message parser does not use them: it classifies tokens
// through the data dictionary's header and trailer sections.
var headerTags = map[Tag]bool{
	BeginString: true, BodyLength: true, MsgType: true,
	SenderCompID: true, TargetCompID: true, OnBehalfOfCompID: true,
	DeliverToCompID: true, SecureDataLen: true, SecureData: true,
	MsgSeqNum: true, SenderSubID: true, SenderLocationID: true,
	TargetSubID: true, TargetLocationID: true, OnBehalfOfSubID: true,
	OnBehalfOfLocationID: true, DeliverToSubID: true, DeliverToLocationID: true,
	PossDupFlag: true, PossResend: true, SendingTime: true,
	OrigSendingTime: true, XmlDataLen: true, XmlData: true,
	MessageEncoding: true, LastMsgSeqNumProcessed: true, NoHops: true,
}

var trailerTags = map[Tag]bool{
	SignatureLength: true, Signature: true, CheckSum: true,
}

// SignatureLength and Signature are the trailer's optional signing fields.
const (
	SignatureLength Tag = 93
	Signature       Tag = 89
)

// IsHeader reports whether t belongs to the fixed FIX header convention.
func IsHeader(t Tag) bool { return headerTags[t] }

// IsTrailer reports whether t belongs to the fixed FIX trailer convention.
func IsTrailer(t Tag) bool { return trailerTags[t] }
