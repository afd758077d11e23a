package debug_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gorazor/pkg/debug"
)

func TestHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Hook(debug.TimeHook{Format: "2006"}).Hook(debug.CallerHook{})

	logger.Info().Msg("hello")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Len(t, event["time"], 4)
	assert.Contains(t, event["caller"], "github.com/walteh/gorazor/pkg/debug_test:debug_test.go:")
}

func TestAssert(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	debug.Assert(ctx, true, "never logged")
	assert.Zero(t, buf.Len())

	debug.Assert(ctx, false, "index %d", 3)
	assert.Contains(t, buf.String(), `"assertion":"index 3"`)

	restore := debug.SetAssertPanics(true)
	assert.PanicsWithValue(t, "assertion failed: index 4", func() { debug.Assert(ctx, false, "index %d", 4) })
	restore()
	assert.NotPanics(t, func() { debug.Assert(ctx, false, "index %d", 5) })
}
