package calcbench

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// A TestCase is one equation every service is tested with.
type TestCase struct {
	Name     string `yaml:"name"`     // Optional name, used as the test's title if set
	Equation string `yaml:"equation"` // The equation submitted to the service
	Expected string `yaml:"expected"` // The expected result, or "error" if the equation has to be rejected
}

// Title returns the name under which the test case is reported
func (t TestCase) Title() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Equation
}

// Classification is the bucket a test case's outcome falls into.
type Classification int

const (
	Pass Classification = iota
	Fail
	Timeout
)

func (c Classification) String() string {
	switch c {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	case Timeout:
		return "timeout"
	}
	return "unknown"
}

// Symbol returns the report symbol of the classification
func (c Classification) Symbol() string {
	switch c {
	case Pass:
		return "+"
	case Timeout:
		return "T"
	}
	return "-"
}

// Classify compares an outcome with the test case's expectation.
// Only a settled timeout is classified as [Timeout], whatever its result.
func (t TestCase) Classify(o Outcome) Classification {
	if o.Kind == OutcomeTimeout {
		return Timeout
	}
	if o.Result == t.Expected {
		return Pass
	}
	return Fail
}

// uniqueTitles returns a copy of cases in which every repeated title is made unique by appending its occurrence, e.g. "2 + 2 #2"
func uniqueTitles(cases []TestCase) []TestCase {
	unique := make([]TestCase, len(cases))
	used := make(map[string]bool, len(cases))
	for i, tc := range cases {
		title := tc.Title()
		for n := 2; used[title]; n++ {
			title = fmt.Sprintf("%s #%d", tc.Title(), n)
		}
		if title != tc.Title() {
			tc.Name = title
		}
		used[title] = true
		unique[i] = tc
	}
	return unique
}

// Size of the generated stress case
const (
	longCaseTerms    = 6000
	longCaseTerm     = "1/2"
	longCaseExpected = "3000"
)

//go:embed testcases.yml
var testCasesYaml []byte

// DefaultTestCases returns the fixed test case table: the embedded cases followed by the long stress case.
// Every call returns a fresh copy.
func DefaultTestCases() []TestCase {
	var cases []TestCase
	if err := yaml.Unmarshal(testCasesYaml, &cases); err != nil {
		panic(fmt.Sprintf("embedded test cases are malformed - %v", err))
	}
	return append(cases, longTestCase())
}

// longTestCase sums up longCaseTerms fractions, which slow services usually don't manage within the deadline
func longTestCase() TestCase {
	terms := make([]string, longCaseTerms)
	for i := range terms {
		terms[i] = longCaseTerm
	}
	return TestCase{
		Name:     "long",
		Equation: strings.Join(terms, " + "),
		Expected: longCaseExpected,
	}
}
