package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classboard/classboard/pkg/logger"
)

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestUserID(t *testing.T) {
	attr := logger.UserID("u123")
	require.Equal(t, "user_id", attr.Key)
	assert.Equal(t, "u123", attr.Value.Any())

	empty := logger.UserID(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestNotificationID(t *testing.T) {
	attr := logger.NotificationID("n1")
	require.Equal(t, "notification_id", attr.Key)
	assert.Equal(t, "n1", attr.Value.Any())
}

func TestCourseID(t *testing.T) {
	attr := logger.CourseID("c1")
	require.Equal(t, "course_id", attr.Key)
	assert.Equal(t, "c1", attr.Value.Any())
}

func TestRole(t *testing.T) {
	attr := logger.Role("student")
	require.Equal(t, "role", attr.Key)
	assert.Equal(t, "student", attr.Value.Any())

	empty := logger.Role(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestConnectionCount(t *testing.T) {
	attr := logger.ConnectionCount(3)
	require.Equal(t, "connections", attr.Key)
	assert.Equal(t, int64(3), attr.Value.Int64())
}

func TestAttempt(t *testing.T) {
	attr := logger.Attempt(2)
	require.Equal(t, "attempt", attr.Key)
	assert.Equal(t, int64(2), attr.Value.Int64())
}

func TestDuration(t *testing.T) {
	attr := logger.Duration(2 * time.Second)
	require.Equal(t, "duration", attr.Key)
	assert.Equal(t, 2*time.Second, attr.Value.Any())
}
