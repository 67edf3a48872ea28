package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalCatalog = `
catalog:
  - {product_id: 1001, title: iPhone 1, price: "499.00", image: iphone1.jpeg}
`

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/update_and_remove.yaml")
	require.NoError(t, err)

	assert.Equal(t, "update_and_remove", s.Name)
	assert.Empty(t, s.Session)
	require.Len(t, s.Catalog, 2)
	assert.Equal(t, "19.99", s.Catalog[1].Price)
	require.Len(t, s.Steps, 6)

	set := s.Steps[1]
	assert.Equal(t, OpSetQuantity, set.Op)
	assert.Equal(t, int64(1001), set.ProductID)
	assert.Equal(t, 15, set.Quantity)
	require.NotNil(t, set.Expect)
	require.NotNil(t, set.Expect.SentQuantity)
	assert.Equal(t, 10, *set.Expect.SentQuantity)

	assert.Equal(t, 500, s.Steps[2].Status)
	require.NotNil(t, s.Steps[4].Confirm)
	assert.True(t, *s.Steps[4].Confirm)

	require.NotNil(t, s.Expect)
	assert.Equal(t, []ItemLine{{ProductID: 1001, Quantity: 10}}, s.Expect.Items)
	assert.Len(t, s.Assertions, 5)
}

func TestLoadScenario_Anonymous(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/anonymous_redirect.yaml")
	require.NoError(t, err)

	assert.Equal(t, SessionAnonymous, s.Session)
	assert.Equal(t, "/cart/?ref=nav", s.CurrentPath)
	require.NotNil(t, s.Expect.Redirect)
	assert.Equal(t, "/cart/?ref=nav", *s.Expect.Redirect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: misspelled field
`+minimalCatalog+`
steps:
  - op: refresh
    prodct_id: 1001
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "description: x\n" + minimalCatalog + "steps:\n  - op: refresh\n",
			want: "name is required",
		},
		{
			name: "missing description",
			body: "name: x\n" + minimalCatalog + "steps:\n  - op: refresh\n",
			want: "description is required",
		},
		{
			name: "bad session",
			body: "name: x\ndescription: x\nsession: guest\n" + minimalCatalog + "steps:\n  - op: refresh\n",
			want: "session must be",
		},
		{
			name: "no steps",
			body: "name: x\ndescription: x\n" + minimalCatalog,
			want: "steps list is required",
		},
		{
			name: "anonymous seed",
			body: "name: x\ndescription: x\nsession: anonymous\n" + minimalCatalog +
				"seed:\n  - {product_id: 1001, quantity: 1}\nsteps:\n  - op: refresh\n",
			want: "seed requires an authenticated session",
		},
		{
			name: "unknown op",
			body: "name: x\ndescription: x\n" + minimalCatalog + "steps:\n  - op: checkout\n",
			want: `unknown op "checkout"`,
		},
		{
			name: "row op without product",
			body: "name: x\ndescription: x\n" + minimalCatalog + "steps:\n  - op: increment\n",
			want: "product_id is required for increment",
		},
		{
			name: "fail_next without error status",
			body: "name: x\ndescription: x\n" + minimalCatalog + "steps:\n  - op: fail_next\n    status: 200\n",
			want: "fail_next needs an error status",
		},
		{
			name: "confirm outside remove",
			body: "name: x\ndescription: x\n" + minimalCatalog +
				"steps:\n  - op: add\n    product_id: 1001\n    confirm: false\n",
			want: "confirm only applies to remove",
		},
		{
			name: "expect without outcome",
			body: "name: x\ndescription: x\n" + minimalCatalog +
				"steps:\n  - op: refresh\n    expect: {count: 1}\n",
			want: "outcome is required",
		},
		{
			name: "bad total",
			body: "name: x\ndescription: x\n" + minimalCatalog +
				"steps:\n  - op: refresh\nexpect:\n  total: lots\n",
			want: "expect.total",
		},
		{
			name: "unknown assertion",
			body: "name: x\ndescription: x\n" + minimalCatalog +
				"steps:\n  - op: refresh\nassertions:\n  - type: trace_sum\n",
			want: `unknown assertion type "trace_sum"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unquoted price",
			body: "name: x\ndescription: x\ncatalog:\n  - {product_id: 1001, title: iPhone 1, price: 499.00}\n" +
				"steps:\n  - op: refresh\n",
			want: "price",
		},
		{
			name: "unknown outcome",
			body: "name: x\ndescription: x\n" + minimalCatalog + "steps:\n  - op: refresh\n    expect: {outcome: okay}\n",
			want: "outcome",
		},
		{
			name: "seed quantity above limit",
			body: "name: x\ndescription: x\n" + minimalCatalog +
				"seed:\n  - {product_id: 1001, quantity: 11}\nsteps:\n  - op: refresh\n",
			want: "quantity",
		},
		{
			name: "request_count on unknown service op",
			body: "name: x\ndescription: x\n" + minimalCatalog +
				"steps:\n  - op: refresh\nassertions:\n  - {type: request_count, op: post, count: 1}\n",
			want: "op",
		},
		{
			name: "name with path separator",
			body: "name: a/b\ndescription: x\n" + minimalCatalog + "steps:\n  - op: refresh\n",
			want: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "scenario does not match schema")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckSchema_AcceptsShippedScenarios(t *testing.T) {
	for _, name := range []string{"update_and_remove", "anonymous_redirect", "add_rejected"} {
		path := "testdata/scenarios/" + name + ".yaml"
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NoError(t, checkSchema(path, data), name)
	}
}
