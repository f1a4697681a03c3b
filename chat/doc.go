// File: chat/doc.go
// Package chat
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Completion-driven TCP broadcast core. The Server submits described
// operations (accept, read, write, close) to an api.Completer together with
// correlation tokens, then consumes one completion at a time and runs the
// per-kind state transition: accepts and reads re-arm themselves, writes and
// closes are one-shot. The Registry tracks live peers, the Ledger maps each
// token back to its in-flight request, and the Submitter absorbs transient
// submission-capacity exhaustion in an overflow queue.
//
// Everything here runs on a single logical thread: state is only ever
// mutated from within the handling of one completion.
package chat
