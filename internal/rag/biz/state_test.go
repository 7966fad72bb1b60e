package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_Table(t *testing.T) {
	tests := []struct {
		from State
		ev   Event
		to   State
	}{
		{StateAwaitDecision, EventDirectAnswer, StateDone},
		{StateAwaitDecision, EventToolCall, StateRetrieving},
		{StateAwaitDecision, EventUnknownAction, StateAwaitDecision},
		{StateAwaitDecision, EventParseFailed, StateAwaitDecision},
		{StateAwaitDecision, EventBudgetExhausted, StateAnswering},
		{StateRetrieving, EventRetrieved, StateGrading},
		{StateGrading, EventRelevant, StateAnswering},
		{StateGrading, EventNotRelevant, StateRewriting},
		{StateRewriting, EventRewritten, StateAwaitDecision},
		{StateRewriting, EventBudgetExhausted, StateAnswering},
		{StateAnswering, EventAnswered, StateDone},
		{StateAnswering, EventFallback, StateDone},
	}
	for _, tt := range tests {
		got, err := Next(tt.from, tt.ev)
		require.NoError(t, err, "%s --%s-->", tt.from, tt.ev)
		assert.Equal(t, tt.to, got)
	}
}

func TestNext_FailureFromEveryActiveState(t *testing.T) {
	for _, s := range AllStates() {
		if s.IsTerminal() {
			continue
		}
		got, err := Next(s, EventFailure)
		require.NoError(t, err)
		assert.Equal(t, StateFailed, got)
	}
}

func TestNext_Rejected(t *testing.T) {
	_, err := Next(StateGrading, EventToolCall)
	assert.Error(t, err)

	_, err = Next(StateDone, EventFailure)
	assert.Error(t, err)
}

func TestState_Counted(t *testing.T) {
	assert.True(t, StateAwaitDecision.Counted())
	assert.True(t, StateRetrieving.Counted())
	assert.False(t, StateGrading.Counted())
	assert.False(t, StateAnswering.Counted())
	assert.True(t, StateDone.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
}
