package cachemanager

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLookupCache_CachesHitsAndMisses(t *testing.T) {
	calls := map[string]int{}
	lookup := func(name string) (string, error) {
		calls[name]++
		if name == "ls" {
			return "/bin/ls", nil
		}
		return "", exec.ErrNotFound
	}

	c := NewLookupCache(time.Minute, lookup)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Equal(t, Resolution{Path: "/bin/ls", Found: true}, c.Resolve(ctx, "ls"))
		require.Equal(t, Resolution{}, c.Resolve(ctx, "somebscommand"))
	}

	require.Equal(t, 1, calls["ls"])
	require.Equal(t, 1, calls["somebscommand"])
}

func TestLookupCache_PathChangeIsMiss(t *testing.T) {
	calls := 0
	c := NewLookupCache(time.Minute, func(string) (string, error) {
		calls++
		return "", errors.New("nope")
	})

	t.Setenv("PATH", "/one")
	c.Resolve(context.Background(), "tool")
	t.Setenv("PATH", "/two")
	c.Resolve(context.Background(), "tool")

	require.Equal(t, 2, calls)
}

func TestLookupCache_DefaultsToLookPath(t *testing.T) {
	c := NewLookupCache(0, nil)
	res := c.Resolve(context.Background(), "sh")
	require.True(t, res.Found)
	require.NotEmpty(t, res.Path)
}
