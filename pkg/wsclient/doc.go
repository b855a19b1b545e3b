// Package wsclient owns the client side of the notification transport: a
// reconnecting WebSocket manager and the in-memory inbox that merges live
// push frames with REST-fetched history.
//
// The Manager owns exactly one logical connection per client session and
// keeps it alive across transient failures with capped exponential backoff,
// so consumers only subscribe to parsed frames and never see reconnection
// mechanics. After the retry budget is exhausted the manager goes quiet and
// delivery degrades to REST polling; a fresh Connect call is the only
// recovery.
package wsclient
