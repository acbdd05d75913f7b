// Package ratelimit enforces the per-recipient daily send quota.
//
// A Store counts successful sends per (recipient, calendar day). Callers
// Reserve a slot before attempting delivery and Release it if delivery fails,
// so concurrent dispatches to one recipient can never record more than the
// quota between them.
//
// Two stores are provided. MemoryStore keeps one window per recipient and is
// pruned by a cron-driven Pruner. RedisStore keeps one key per recipient and
// day and lets Redis expire old keys.
package ratelimit
