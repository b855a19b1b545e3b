package redis

import "errors"

var (
	// ErrFailedToParseRedisConnString is returned when the connection URL is malformed.
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")

	// ErrRedisNotReady is returned when all connection attempts fail.
	ErrRedisNotReady = errors.New("redis connection is not ready")

	// ErrHealthcheckFailed is returned when a ping fails on an established client.
	ErrHealthcheckFailed = errors.New("redis healthcheck failed")
)
