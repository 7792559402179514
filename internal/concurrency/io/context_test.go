package io

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadIOContextDisplayWritesToOutput(t *testing.T) {
	coord := New(DefaultPolicies(), nil)
	var out bytes.Buffer
	ctx := NewThreadIOContext(coord, "t1", &out, strings.NewReader(""))

	require.NoError(t, ctx.Display("hello"))
	assert.Equal(t, "hello", out.String())
}

func TestThreadIOContextReadLineReturnsLinesThenEOF(t *testing.T) {
	coord := New(DefaultPolicies(), nil)
	var out bytes.Buffer
	ctx := NewThreadIOContext(coord, "t1", &out, strings.NewReader("first\nsecond\n"))

	line, ok, err := ctx.ReadLine()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "first", line)

	line, ok, err = ctx.ReadLine()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", line)

	_, ok, err = ctx.ReadLine()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestThreadIOContextConsoleOpsShareCoordinatorHistory(t *testing.T) {
	policies := DefaultPolicies()
	coord := New(policies, nil)
	var out bytes.Buffer
	ctx := NewThreadIOContext(coord, "t1", &out, strings.NewReader(""))

	require.NoError(t, ctx.Display("a"))
	require.NoError(t, ctx.Display("b"))

	history := coord.History()
	assert.Len(t, history, 2)
	assert.Equal(t, ConsoleOutput, history[0].Operation.Type)
}
