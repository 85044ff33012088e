package inference

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Classify wraps a provider error into an *Error with the right kind.
// Context cancellation is returned unchanged so callers can tell it apart
// from backend failures.
func Classify(msg string, err error) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if transient(err) {
		return TransientError(msg, err)
	}
	return PermanentError(msg, err)
}

func transient(err error) bool {
	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) {
		return retryableStatus(oaiAPI.HTTPStatusCode)
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) {
		return retryableStatus(oaiReq.HTTPStatusCode)
	}

	var antAPI *anthropic.APIError
	if errors.As(err, &antAPI) {
		return antAPI.IsRateLimitErr() || antAPI.IsOverloadedErr() || antAPI.IsApiErr()
	}
	var antReq *anthropic.RequestError
	if errors.As(err, &antReq) {
		return retryableStatus(antReq.StatusCode)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return retryableStatus(gerr.Code)
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusConflict,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
