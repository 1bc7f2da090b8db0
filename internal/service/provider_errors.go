package service

import (
	"context"
	"errors"
	"fmt"

	"dermascan-be/internal/pkg/serverutils"
	"dermascan-be/pkg/llm"
)

// providerError maps a model failure onto the HTTP taxonomy. 429 and 402 pass
// through with their fixed user messages; everything else is a bad gateway.
func providerError(operation string, err error) error {
	switch {
	case llm.IsRateLimited(err):
		return serverutils.NewRateLimitError(err)
	case llm.IsQuotaExhausted(err):
		return serverutils.NewQuotaError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return serverutils.NewUpstreamError(operation+" timed out", err)
	}

	if status := llm.StatusCode(err); status != 0 {
		return serverutils.NewUpstreamError(fmt.Sprintf("%s failed: %d", operation, status), err)
	}
	return serverutils.NewUpstreamError(operation+" failed", err)
}
