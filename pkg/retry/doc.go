// Package retry re-runs search calls that fail for transient reasons.
//
// Only network, rate limit, and server errors from pkg/errors are retried;
// every other failure is returned on the first attempt. Attempts are capped
// by Config.MaxAttempts so a persistent outage surfaces instead of looping.
package retry
