package kartexlog

import (
	"github.com/go-kit/log"
	"golang.org/x/time/rate"
)

// RateLimited wraps logger so that, once its token bucket is exhausted, Log
// calls are silently dropped. Used by the ingestion adapters to avoid a
// single misbehaving source flooding the process logs with one WARN per
// datagram.
type RateLimited struct {
	logger  log.Logger
	limiter *rate.Limiter
}

// NewRateLimited allows up to burst immediate log calls, then refills at
// perSecond calls/second.
func NewRateLimited(logger log.Logger, perSecond float64, burst int) *RateLimited {
	return &RateLimited{logger: logger, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimited) Log(keyvals ...interface{}) error {
	if !r.limiter.Allow() {
		return nil
	}
	return r.logger.Log(keyvals...)
}
