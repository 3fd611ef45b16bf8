// Package rpc holds the connect plumbing shared by the market services.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/rs/zerolog/log"
)

const (
	// MemberHeader carries the caller identity set by the auth proxy.
	MemberHeader = "X-Member-Id"
	// ErrorCodeHeader carries the machine-readable failure code.
	ErrorCodeHeader = "Market-Error-Code"
	// PendingHeader carries the number of missing acknowledgments.
	PendingHeader = "Market-Pending-Acks"
)

// JSONCodec encodes plain Go structs, replacing connect's protobuf JSON codec.
type JSONCodec struct{}

func (JSONCodec) Name() string                       { return "json" }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// HandlerOptions are applied to every market handler.
func HandlerOptions(extra ...connect.HandlerOption) []connect.HandlerOption {
	opts := []connect.HandlerOption{
		connect.WithCodec(JSONCodec{}),
		connect.WithInterceptors(LoggingInterceptor()),
	}
	return append(opts, extra...)
}

// ClientOptions configure clients of the market services.
func ClientOptions(extra ...connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, extra...)
}

// Caller returns the member identity of a request.
func Caller(header http.Header) (uuid.UUID, error) {
	raw := header.Get(MemberHeader)
	if raw == "" {
		return uuid.Nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing "+MemberHeader+" header"))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid "+MemberHeader+" header"))
	}
	return id, nil
}

// ParseID parses a uuid request field.
func ParseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid "+field))
	}
	return id, nil
}

// Error converts an engine error into a connect error.
func Error(err error) error {
	if err == nil {
		return nil
	}
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	var merr *marketerr.Error
	if !errors.As(err, &merr) {
		log.Error().Err(err).Msg("unexpected error")
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}

	out := connect.NewError(codeFor(merr.Kind), merr)
	out.Meta().Set(ErrorCodeHeader, merr.Code)
	if merr.Pending > 0 {
		out.Meta().Set(PendingHeader, strconv.Itoa(merr.Pending))
	}
	return out
}

func codeFor(kind marketerr.Kind) connect.Code {
	switch kind {
	case marketerr.KindValidation:
		return connect.CodeInvalidArgument
	case marketerr.KindNotFound:
		return connect.CodeNotFound
	case marketerr.KindAuthorization:
		return connect.CodePermissionDenied
	case marketerr.KindConflict, marketerr.KindBusinessRule:
		return connect.CodeFailedPrecondition
	case marketerr.KindVersionConflict:
		return connect.CodeAborted
	case marketerr.KindTransient:
		return connect.CodeUnavailable
	default:
		return connect.CodeInternal
	}
}

// LoggingInterceptor logs every unary call with its outcome.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)

			evt := log.Debug()
			if err != nil {
				evt = log.Info().Str("code", connect.CodeOf(err).String())
				var cerr *connect.Error
				if errors.As(err, &cerr) {
					evt = evt.Str("error_code", cerr.Meta().Get(ErrorCodeHeader))
				}
			}
			evt.
				Str("procedure", req.Spec().Procedure).
				Str("member_id", req.Header().Get(MemberHeader)).
				Dur("duration", time.Since(start)).
				Msg("rpc")
			return res, err
		}
	}
}
