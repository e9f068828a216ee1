package expression

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_Comparisons(t *testing.T) {
	m := NewMatcher()

	bindings := map[string]any{
		"kitchen_lamp_power":      "on",
		"kitchen_lamp_brightness": int64(80),
		"kitchen_sensor_temp":     21.5,
		"kitchen_sensor_motion":   true,
	}

	tests := []struct {
		name     string
		expr     string
		expected bool
	}{
		{"string_equal", "kitchen_lamp_power == 'on'", true},
		{"string_not_equal", "kitchen_lamp_power != 'off'", true},
		{"int_equal", "kitchen_lamp_brightness == 80", true},
		{"int_compare", "kitchen_lamp_brightness > 50", true},
		{"float_compare", "kitchen_sensor_temp < 20.0", false},
		{"bool_direct", "kitchen_sensor_motion", true},
		{"and", "kitchen_sensor_motion && kitchen_lamp_brightness >= 80", true},
		{"or", "kitchen_sensor_temp > 30 || kitchen_lamp_power == 'on'", true},
		{"negation", "!(kitchen_lamp_power == 'on')", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, err := m.Match(tt.expr, bindings)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, matched)
		})
	}
}

func TestMatch_SyntaxError(t *testing.T) {
	m := NewMatcher()

	_, err := m.Match("kitchen_lamp_power ==", nil)
	require.Error(t, err)
	assert.True(t, IsSyntaxError(err))
	assert.False(t, IsUnresolvedIdentifier(err))
}

func TestMatch_NonBooleanResult(t *testing.T) {
	m := NewMatcher()

	_, err := m.Match("1 + 2", nil)
	require.Error(t, err)
	assert.True(t, IsSyntaxError(err))
}

func TestMatch_UnresolvedIdentifier(t *testing.T) {
	m := NewMatcher()

	_, err := m.Match("bedroom_lamp_power == 'on'", map[string]any{
		"kitchen_lamp_power": "on",
	})
	require.Error(t, err)
	assert.True(t, IsUnresolvedIdentifier(err))
	assert.False(t, IsSyntaxError(err))
}

func TestMatch_CachesCompiledExpressions(t *testing.T) {
	m := NewMatcher()
	bindings := map[string]any{"a_b_c": int64(5)}

	for i := 0; i < 3; i++ {
		matched, err := m.Match("a_b_c == 5", bindings)
		require.NoError(t, err)
		assert.True(t, matched)
	}

	assert.Equal(t, 1, m.cache.size())
}

func TestCompiledCache_Eviction(t *testing.T) {
	c := newCompiledCache(2)

	for i := 0; i < 4; i++ {
		expr := fmt.Sprintf("a == %d", i)
		compiled, err := NewMatcher().compile(expr)
		require.NoError(t, err)
		c.set(expr, compiled)
	}

	assert.Equal(t, 2, c.size())

	// Oldest entries were evicted first.
	_, ok := c.get("a == 0")
	assert.False(t, ok)
	_, ok = c.get("a == 3")
	assert.True(t, ok)
}
