// Package redis provides connection helpers for go-redis v9: URL parsing,
// startup retries, and a health check closure. The notification fan-out
// bridge uses it to share pushes across server instances.
package redis
