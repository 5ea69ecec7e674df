//go:build nogui || headless || !(darwin || windows)

package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSystemRegistrarFallsBackToInProcess(t *testing.T) {
	r := NewSystemRegistrar(zaptest.NewLogger(t))
	require.IsType(t, &localRegistrar{}, r)

	m := NewManager(r, zaptest.NewLogger(t))
	var fired int
	m.Handle(ActionQuit, func() { fired++ })
	require.NoError(t, m.Init(true, []string{"quit,CommandOrControl+Q"}))

	assert.Len(t, m.Bindings(), 1)
	require.NoError(t, m.Trigger(ActionQuit))
	assert.Equal(t, 1, fired)
}
