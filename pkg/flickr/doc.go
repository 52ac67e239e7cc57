// Package flickr is a small REST client for the three API methods a harvest
// needs: photo search, the key probe, and owner profile lookup.
//
// Every call is paced by a ratelimit.Limiter and, when configured, served
// from a ResponseCache keyed by the query without the API key. Failures are
// returned as *errors.Error values whose type drives retry and abort
// decisions upstream.
package flickr
