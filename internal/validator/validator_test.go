package validator_test

import (
	"testing"

	"github.com/aretw0/dialogic/internal/validator"
	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, b *dsl.Builder) *domain.Catalog {
	t.Helper()
	c, err := b.Catalog()
	require.NoError(t, err)
	return c
}

func TestLint_Clean(t *testing.T) {
	b := dsl.New()
	b.Domain("shared").Intent("Ping").Form("pong").Domain().Template("_seem").Form("seems")
	b.Domain("chat").
		Import("shared", "_seem").
		Intent("Hello").
		Form("It [_seem] fine [_tail]", "$n > 0", "{ Length $items } == 2").
		Domain().
		Template("_tail").
		Form("today, $list[0]")

	c := build(t, b)
	assert.Empty(t, validator.Lint(c))
	assert.NoError(t, validator.Validate(c))
}

func TestLint_Problems(t *testing.T) {
	b := dsl.New()
	d := b.Domain("chat").Import("ghost").Import("shared", "_missing")
	d.Intent("Hello").Form("Hi [_nowhere]")
	d.Intent("Bad").Form("x", "($a > 1")
	d.Intent("Loop").Form("[_a]")
	d.Template("_a").Form("[_b]")
	d.Template("_b").Form("[_a]", "{ Not $x }")
	b.Domain("shared").Intent("Ping").Form("pong")

	issues := validator.Lint(build(t, b))
	messages := make([]string, len(issues))
	for i, issue := range issues {
		messages[i] = issue.String()
	}

	assert.ElementsMatch(t, []string{
		`chat: imports unknown domain "ghost"`,
		`chat: imports "_missing" which domain "shared" does not define`,
		`chat/Bad: form 0: condition "($a > 1": unbalanced ( )`,
		`chat/Hello: form 0: invokes unknown template "_nowhere"`,
		`chat/_a: invocation cycle chat/_a -> chat/_b -> chat/_a`,
	}, messages)

	err := validator.Validate(build(t, b))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 5 errors")
}

func TestLint_SelfCycle(t *testing.T) {
	b := dsl.New()
	b.Domain("d").Intent("Echo").Form("again [Echo]")

	issues := validator.Lint(build(t, b))
	require.Len(t, issues, 1)
	assert.Equal(t, "invocation cycle d/Echo -> d/Echo", issues[0].Message)
}
