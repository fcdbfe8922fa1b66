// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

/*
Package profilestore persists listener state in BadgerDB.

One database holds five record families, separated by key prefix:

	profile:<user>                  long-term profile snapshot
	session:<user>:<session>        short-term session state
	event:<user>:<seq>              append-only interaction log
	track:<id>                      track metadata from served responses
	history:<user>:<seq>            served recommendation history

Interaction appends are idempotent on the event ID; the sequence counter,
the ID marker, and the running per-user count commit atomically with the
event itself.
*/
package profilestore
