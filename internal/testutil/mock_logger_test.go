package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/turtacn/mseg-regionalizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/mseg-regionalizer/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)

	v, ok := logger.FieldValue("test info", "key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	logger.Clear()
	assert.Len(t, logger.GetMessages(), 0)

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.True(t, logger.HasMessageContaining("error", "error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_SatisfiesInterface(t *testing.T) {
	var l logging.Logger = testutil.NewMockLogger()
	assert.Same(t, l, l.Named("x"))
	assert.NoError(t, l.Sync())
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "a/b.txt", "hello")
	assert.FileExists(t, path)
}

//Personal.AI order the ending
