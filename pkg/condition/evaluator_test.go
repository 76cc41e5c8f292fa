package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/condition"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/models"
)

func definitionWith(conns ...models.BpmnConnection) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:          "test",
		Elements:    []models.BpmnElement{{ID: "a", Type: models.StartEvent}, {ID: "b", Type: models.EndEvent}},
		Connections: conns,
	}
}

func TestEvaluator(t *testing.T) {
	t.Run("EmptyConditionAlwaysTaken", func(t *testing.T) {
		conn := models.BpmnConnection{ID: "c1", SourceID: "a", TargetID: "b"}
		ev, err := condition.NewEvaluator(definitionWith(conn))
		require.NoError(t, err)

		taken, err := ev.Evaluate(conn, nil)
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("VariableReference", func(t *testing.T) {
		conn := models.BpmnConnection{ID: "c1", SourceID: "a", TargetID: "b", Condition: "approved"}
		ev, err := condition.NewEvaluator(definitionWith(conn))
		require.NoError(t, err)

		taken, err := ev.Evaluate(conn, map[string]any{"approved": true})
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = ev.Evaluate(conn, map[string]any{"approved": false})
		require.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("AbsentVariableIsFalsy", func(t *testing.T) {
		conn := models.BpmnConnection{ID: "c1", SourceID: "a", TargetID: "b", Condition: "approved"}
		ev, err := condition.NewEvaluator(definitionWith(conn))
		require.NoError(t, err)

		taken, err := ev.Evaluate(conn, map[string]any{})
		require.NoError(t, err)
		assert.False(t, taken)

		taken, err = ev.Evaluate(conn, nil)
		require.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("Comparisons", func(t *testing.T) {
		conn := models.BpmnConnection{ID: "c1", SourceID: "a", TargetID: "b", Condition: "amount > 1000"}
		ev, err := condition.NewEvaluator(definitionWith(conn))
		require.NoError(t, err)

		taken, err := ev.Evaluate(conn, map[string]any{"amount": 5000})
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = ev.Evaluate(conn, map[string]any{"amount": 10})
		require.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("BooleanOperators", func(t *testing.T) {
		conn := models.BpmnConnection{ID: "c1", SourceID: "a", TargetID: "b", Condition: "approved && !escalated"}
		ev, err := condition.NewEvaluator(definitionWith(conn))
		require.NoError(t, err)

		taken, err := ev.Evaluate(conn, map[string]any{"approved": true, "escalated": false})
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = ev.Evaluate(conn, map[string]any{"approved": true, "escalated": true})
		require.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("CompileErrorRejectsDefinition", func(t *testing.T) {
		conn := models.BpmnConnection{ID: "c1", SourceID: "a", TargetID: "b", Condition: "approved &&"}
		_, err := condition.NewEvaluator(definitionWith(conn))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "c1")
	})

	t.Run("RuntimeErrorIsTyped", func(t *testing.T) {
		conn := models.BpmnConnection{ID: "c1", SourceID: "a", TargetID: "b", Condition: "amount / divisor > 1"}
		ev, err := condition.NewEvaluator(definitionWith(conn))
		require.NoError(t, err)

		_, err = ev.Evaluate(conn, map[string]any{"amount": 10, "divisor": 0})
		require.Error(t, err)

		var evalErr *condition.EvalError
		require.ErrorAs(t, err, &evalErr)
		assert.Equal(t, "c1", evalErr.ConnectionID)
		assert.Equal(t, "amount / divisor > 1", evalErr.Condition)
	})
}

func TestTruthy(t *testing.T) {
	assert.False(t, condition.Truthy(nil))
	assert.False(t, condition.Truthy(false))
	assert.False(t, condition.Truthy(0))
	assert.False(t, condition.Truthy(int64(0)))
	assert.False(t, condition.Truthy(0.0))
	assert.False(t, condition.Truthy(""))
	assert.True(t, condition.Truthy(true))
	assert.True(t, condition.Truthy(1))
	assert.True(t, condition.Truthy(-1.5))
	assert.True(t, condition.Truthy("no"))
	assert.True(t, condition.Truthy([]any{}))
}
