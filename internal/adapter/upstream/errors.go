// Package upstream holds the shared plumbing for remote model providers.
package upstream

import (
	"context"
	"errors"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"intramind/internal/domain"
)

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

// ClassifyError marks err as transient when it is a network failure, a
// per-attempt timeout, or an upstream 408/429/5xx. Everything else is
// returned unchanged and treated as permanent.
func ClassifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if retryableStatus(apiErr.HTTPStatusCode) {
			return domain.Transient(op, err)
		}
		return err
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 || retryableStatus(reqErr.HTTPStatusCode) {
			return domain.Transient(op, err)
		}
		return err
	}

	var gErr genai.APIError
	if errors.As(err, &gErr) {
		if retryableStatus(gErr.Code) {
			return domain.Transient(op, err)
		}
		return err
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) && gErrPtr != nil {
		if retryableStatus(gErrPtr.Code) {
			return domain.Transient(op, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Transient(op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.Transient(op, err)
	}

	return err
}
