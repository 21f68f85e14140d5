package reliability

import "time"

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsAuthHTTPStatus classifies credential rejections. These surface to the
// user as "sign in again", never as a generic transient failure.
func IsAuthHTTPStatus(code int) bool {
	switch code {
	case 401, 403:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
