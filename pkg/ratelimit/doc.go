// Package ratelimit paces calls to the photo search API and the asset host.
//
// TokenBucket refills to full capacity once per period and backs the
// requests-per-minute setting. SlidingWindow bounds calls inside any moving
// window and paces asset downloads. Both honour context cancellation in Wait
// so a halted harvest never sits out a refill period.
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
