package errcode

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf(t *testing.T) {
	assert.Equal(t, OK, Of(nil))
	assert.Equal(t, Busy, Of(Busy))
	assert.Equal(t, Busy, Of(fmt.Errorf("wrapped: %w", Busy)))
	assert.Equal(t, StartFailed, Of(Wrap(StartFailed, "ui.start", InvalidParams)), "outermost code wins")
	assert.Equal(t, Error, Of(errors.New("plain")))
}

func TestE_IsAndMessage(t *testing.T) {
	err := &E{C: ShutdownTimeout, Op: "shutdown", Msg: "sensor"}
	assert.True(t, errors.Is(err, ShutdownTimeout))
	assert.False(t, errors.Is(err, Timeout))
	assert.Equal(t, "shutdown: shutdown_timeout: sensor", err.Error())
}

func TestMapDriverErr(t *testing.T) {
	assert.Equal(t, OK, MapDriverErr(nil))
	assert.Equal(t, Timeout, MapDriverErr(context.DeadlineExceeded))
	assert.Equal(t, Unsupported, MapDriverErr(Unsupported))
	assert.Equal(t, DriverFailure, MapDriverErr(errors.New("spi: nack")))
}
