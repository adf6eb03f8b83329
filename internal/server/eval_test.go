package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	values := []struct {
		equation string
		result   string
	}{
		{"2 + 2", "4"},
		{"1/2 + 1/3", "5/6"},
		{"2 + 3 * 4", "14"},
		{"(1 + 2) * 3", "9"},
		{"1 - 5", "-4"},
		{"2/4", "1/2"},
		{"((1/2) * (2/3))", "1/3"},
		{"(3/4) / (1/8)", "6"},
		{"   7   ", "7"},
		{"-(1/2) - -1", "1/2"},
		{"10 - 2 - 3", "5"},
		{"12 / 2 / 3", "2"},
		{"123456789012345678901234567890 * 10", "1234567890123456789012345678900"},
		{strings.Repeat("1/2 + ", 5999) + "1/2", "3000"},
	}

	for _, v := range values {
		res, err := Evaluate(v.equation)
		if assert.NoErrorf(t, err, "Evaluating %.40q returned an error", v.equation) {
			assert.Equalf(t, v.result, res, "Wrong result for %.40q", v.equation)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	values := []struct {
		equation string
		err      string
	}{
		{"", "empty equation"},
		{"   ", "empty equation"},
		{"(2 + 2) + (", "unbalanced parens"},
		{"(2 + 2", "unbalanced parens"},
		{"2 + 2)", "unbalanced parens"},
		{"()", "unbalanced parens"},
		{"1 / 0", "division by zero"},
		{"1 / (2 - 2)", "division by zero"},
		{"2 + x", `unexpected symbol 'x' at position 4`},
		{"2 2", `unexpected symbol '2' at position 2`},
		{"2 +", "unexpected end of equation"},
	}

	for _, v := range values {
		_, err := Evaluate(v.equation)
		require.Errorf(t, err, "Evaluating %q succeeded", v.equation)
		assert.Equalf(t, v.err, err.Error(), "Wrong error for %q", v.equation)
	}
}
