package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMMHappyPathCompletesWithoutErrors(t *testing.T) {
	s := IdleUSDT
	var err error

	steps := []MMCause{
		HtfBosUpDetected, MMBosConfirmed, PullbackDetected, RebalanceDone,
		LtfBosDown, LtfStructureRecovered, HtfBosDown, ExitDone,
	}
	for _, cause := range steps {
		s, err = Transition(s, cause)
		require.NoError(t, err)
	}
	assert.Equal(t, IdleUSDT, s)
}

func TestMMUnlistedPairIsIllegal(t *testing.T) {
	_, err := Transition(IdleUSDT, ExitDone)
	require.Error(t, err)
	var target *IllegalTransitionError
	assert.ErrorAs(t, err, &target)
}

func TestTrendFlatOnlyAcceptsEntrySignal(t *testing.T) {
	_, err := TrendTransition(TrendFlat, ExitSignal)
	assert.Error(t, err)

	s, err := TrendTransition(TrendFlat, EntrySignal)
	require.NoError(t, err)
	assert.Equal(t, TrendLong, s)
}

func TestTrendLongAcceptsAllThreeExits(t *testing.T) {
	for _, cause := range []TrendCause{ExitSignal, StopLossHit, ForceFlat} {
		s, err := TrendTransition(TrendLong, cause)
		require.NoError(t, err)
		assert.Equal(t, TrendFlat, s)
	}
}
