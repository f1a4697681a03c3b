// File: internal/netpoll/doc.go
// Package netpoll
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Readiness-based poller backends implementing api.Poller: select and poll
// (portable descriptor scanning), epoll (Linux) and kqueue (BSD/darwin).
// Each backend only reports readable descriptors; the relay loop performs
// the actual synchronous I/O.
package netpoll
