package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type lightState string
type lightEvent string

func newLight() *Table[lightState, lightEvent] {
	return New("light",
		Transition[lightState, lightEvent]{From: "red", Event: "go", To: "green"},
		Transition[lightState, lightEvent]{From: "green", Event: "slow", To: "amber"},
		Transition[lightState, lightEvent]{From: "amber", Event: "stop", To: "red"},
		Transition[lightState, lightEvent]{From: "amber", Event: "break", To: "off"},
	)
}

func TestNextFollowsTable(t *testing.T) {
	table := newLight()

	next, err := table.Next("red", "go")
	require.NoError(t, err)
	require.Equal(t, lightState("green"), next)

	next, err = table.Next("amber", "stop")
	require.NoError(t, err)
	require.Equal(t, lightState("red"), next)
}

func TestNextRejectsUnlistedPair(t *testing.T) {
	table := newLight()

	_, err := table.Next("green", "stop")
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeInvalidTransition, typed.Code())
	require.Equal(t, map[string]any{"machine": "light", "from": "green", "event": "stop"}, typed.Details())
}

func TestEventToAndTerminal(t *testing.T) {
	table := newLight()

	event, err := table.EventTo("amber", "off")
	require.NoError(t, err)
	require.Equal(t, lightEvent("break"), event)

	_, err = table.EventTo("off", "red")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	require.True(t, table.Terminal("off"))
	require.False(t, table.Terminal("red"))
}

func TestNewPanicsOnDuplicateEdge(t *testing.T) {
	require.Panics(t, func() {
		New("dup",
			Transition[lightState, lightEvent]{From: "red", Event: "go", To: "green"},
			Transition[lightState, lightEvent]{From: "red", Event: "go", To: "amber"},
		)
	})
}
