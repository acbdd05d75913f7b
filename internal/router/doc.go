// Package router implements breaker-gated, fallback-ordered notification
// dispatch.
//
// For each request the router:
//
//  1. Reserves a slot in the recipient's daily quota, failing fast when the
//     quota is used up
//  2. Walks the registered channels in order, keeping those whose adapter
//     supports the request type
//  3. Skips channels whose circuit breaker refuses the call, sends through
//     the rest until one succeeds, and records every outcome on the breaker
//  4. Gives the quota slot back when nothing was delivered
//
// The router owns its breakers and its quota table; two routers never share
// state unless they are handed the same ratelimit.Store.
package router
