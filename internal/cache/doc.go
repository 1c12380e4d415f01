// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

/*
Package cache provides the shared response cache for analytic results.

The cache is a thread-safe in-memory TTL key-value store with single-flight
recomputation: on a miss or expiry, exactly one caller per key executes the
compute function while concurrent callers for the same key await that result.
This keeps repeated analytic queries cheap and prevents redundant repository
or model work under request bursts.

Keys are namespaced by a prefix up to the first ':' (e.g. "district:11680"),
which scopes metrics and prefix invalidation. TTLs are supplied per call so
each namespace can use its own freshness policy.

Failed computations are never cached; the in-flight slot is released on
error so a subsequent request can retry. A caller that cancels while waiting
on a shared in-flight computation stops waiting without cancelling the
computation for the other waiters.
*/
package cache
