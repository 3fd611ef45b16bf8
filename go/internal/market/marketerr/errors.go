// Package marketerr defines the typed failures returned by the market engine.
package marketerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for the RPC layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindConflict
	KindBusinessRule
	KindVersionConflict
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindBusinessRule:
		return "business_rule"
	case KindVersionConflict:
		return "version_conflict"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Machine-readable codes carried by Error.Code.
const (
	CodeInvalidArgument     = "INVALID_ARGUMENT"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeAuctionNotFound     = "AUCTION_NOT_FOUND"
	CodePlayerNotFound      = "PLAYER_NOT_FOUND"
	CodeMemberNotFound      = "MEMBER_NOT_FOUND"
	CodeAppealNotFound      = "APPEAL_NOT_FOUND"
	CodeLeagueNotFound      = "LEAGUE_NOT_FOUND"
	CodeNotMember           = "NOT_LEAGUE_MEMBER"
	CodeNotAdmin            = "NOT_ADMIN"
	CodeNotNominator        = "NOT_NOMINATOR"
	CodeSessionNotActive    = "SESSION_NOT_ACTIVE"
	CodeSessionExists       = "SESSION_ALREADY_ACTIVE"
	CodeFirstMarketExists   = "FIRST_MARKET_ALREADY_EXISTS"
	CodeWrongPhase          = "WRONG_PHASE"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeAuctionInProgress   = "AUCTION_IN_PROGRESS"
	CodeNominationPending   = "NOMINATION_PENDING"
	CodeNoNomination        = "NO_PENDING_NOMINATION"
	CodeAlreadyConfirmed    = "ALREADY_CONFIRMED"
	CodeNotConfirmed        = "NOMINATION_NOT_CONFIRMED"
	CodeAlreadyReady        = "ALREADY_READY"
	CodeAuctionNotActive    = "AUCTION_NOT_ACTIVE"
	CodeAuctionExpired      = "AUCTION_EXPIRED"
	CodeAlreadyAcknowledged = "ALREADY_ACKNOWLEDGED"
	CodeAckPending          = "ACKNOWLEDGMENTS_PENDING"
	CodeAppealPending       = "APPEAL_PENDING"
	CodeGateReleased        = "GATE_RELEASED"
	CodeWrongRole           = "WRONG_ROLE"
	CodePlayerOwned         = "PLAYER_ALREADY_OWNED"
	CodeBidTooLow           = "BID_TOO_LOW"
	CodeInsufficientBudget  = "INSUFFICIENT_BUDGET"
	CodeSlotsFull           = "ROLE_SLOTS_FULL"
	CodeNoEligible          = "NO_ELIGIBLE_MEMBER"
	CodeRoundComplete       = "ROUND_COMPLETE"
	CodeVersionConflict     = "VERSION_CONFLICT"
	CodeTransient           = "TRANSIENT"
)

// Error is a typed engine failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Pending is the number of members still to act, set on gate rejections.
	Pending int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind and Code so sentinels like ErrVersionConflict work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(code, format string, args ...any) *Error {
	return newf(KindValidation, code, format, args...)
}

func NotFound(code, format string, args ...any) *Error {
	return newf(KindNotFound, code, format, args...)
}

func Authorization(code, format string, args ...any) *Error {
	return newf(KindAuthorization, code, format, args...)
}

func Conflict(code, format string, args ...any) *Error {
	return newf(KindConflict, code, format, args...)
}

func BusinessRule(code, format string, args ...any) *Error {
	return newf(KindBusinessRule, code, format, args...)
}

// AcksPending is the Acknowledgment Gate rejection.
func AcksPending(pending int) *Error {
	e := newf(KindConflict, CodeAckPending, "%d member(s) have not acknowledged the previous auction", pending)
	e.Pending = pending
	return e
}

// Transient wraps an infrastructure failure that may succeed on retry.
func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Code: CodeTransient, Message: "temporary failure", Err: err}
}

// ErrVersionConflict is returned when a compare-and-swap write lost a race.
var ErrVersionConflict = &Error{Kind: KindVersionConflict, Code: CodeVersionConflict, Message: "concurrent modification"}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
