package calcbench

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestCases(t *testing.T) {
	cases := DefaultTestCases()
	require.NotEmpty(t, cases)

	titles := make(map[string]bool)
	for _, tc := range cases {
		assert.Falsef(t, titles[tc.Title()], "Test case title %s is not unique", tc.Title())
		titles[tc.Title()] = true
		assert.NotEmptyf(t, tc.Expected, "Test case %s has no expectation", tc.Title())
	}

	long := cases[len(cases)-1]
	assert.Equal(t, "long", long.Name, "Stress case is not the last case")
	assert.Equal(t, 6000, strings.Count(long.Equation, "1/2"))
	assert.Equal(t, "3000", long.Expected)

	cases[0].Expected = "changed"
	assert.NotEqual(t, "changed", DefaultTestCases()[0].Expected, "Test cases are shared between calls")
}

func TestClassify(t *testing.T) {
	values := []struct {
		name     string
		expected string
		outcome  Outcome
		class    Classification
	}{
		{"Matching result", "4", Outcome{Kind: OutcomeSuccess, Result: "4"}, Pass},
		{"Mismatching result", "4", Outcome{Kind: OutcomeSuccess, Result: "5"}, Fail},
		{"Expected application error", ResultError, Outcome{Kind: OutcomeApplicationError, Result: ResultError}, Pass},
		{"Expected transport error", ResultError, Outcome{Kind: OutcomeTransportError, Result: ResultError}, Pass},
		{"Unexpected error", "4", Outcome{Kind: OutcomeTransportError, Result: ResultError}, Fail},
		{"Result instead of error", ResultError, Outcome{Kind: OutcomeSuccess, Result: "4"}, Fail},
		{"Timeout", "4", Outcome{Kind: OutcomeTimeout, Result: ResultTimeout}, Timeout},
		{"Timeout expecting the timeout marker", ResultTimeout, Outcome{Kind: OutcomeTimeout, Result: ResultTimeout}, Timeout},
	}

	for _, v := range values {
		t.Run(v.name, func(t *testing.T) {
			tc := TestCase{Equation: "2 + 2", Expected: v.expected}
			assert.Equal(t, v.class, tc.Classify(v.outcome))
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "sum", TestCase{Name: "sum", Equation: "1 + 1"}.Title())
	assert.Equal(t, "1 + 1", TestCase{Equation: "1 + 1"}.Title())
}

func TestUniqueTitles(t *testing.T) {
	cases := []TestCase{
		{Equation: "2 + 2", Expected: "4"},
		{Equation: "2 + 2", Expected: "5"},
		{Name: "sum", Equation: "1 + 1", Expected: "2"},
		{Name: "sum", Equation: "1 + 2", Expected: "3"},
		{Equation: "2 + 2", Expected: "4"},
	}

	unique := uniqueTitles(cases)

	titles := make([]string, len(unique))
	for i, tc := range unique {
		titles[i] = tc.Title()
	}
	assert.Equal(t, []string{"2 + 2", "2 + 2 #2", "sum", "sum #2", "2 + 2 #3"}, titles)
	assert.Equal(t, "2 + 2", unique[1].Equation, "Equation was changed")
	assert.Equal(t, "2 + 2", cases[1].Title(), "Passed cases were modified")
}
