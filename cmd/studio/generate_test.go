package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/campaign-studio/internal/apperr"
	"github.com/jonathan/campaign-studio/internal/generation"
	"github.com/jonathan/campaign-studio/internal/jobs"
	"github.com/jonathan/campaign-studio/internal/jobs/jobstest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() generation.PollPolicy {
	return generation.PollPolicy{Interval: time.Millisecond, MaxAttempts: 10, MaxDuration: 5 * time.Second}
}

func TestGenerateAll_SubmitOnly(t *testing.T) {
	client := jobstest.New("https://cdn.test/out.png")
	orch := generation.NewOrchestrator(client, zerolog.Nop())

	var out bytes.Buffer
	err := generateAll(context.Background(), orch, []string{"a red bicycle", "a blue kite"}, generateOptions{
		Parallel: 1,
		Policy:   fastPolicy(),
		Template: jobs.Params{Width: 512},
	}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "a red bicycle")
	assert.Contains(t, lines[1], "req-1")
	assert.Contains(t, lines[2], "req-2")

	submitted := client.Submitted()
	require.Len(t, submitted, 2)
	assert.Equal(t, 512, submitted[0].Width)
	assert.Zero(t, client.Polls("req-1"), "no polling without --wait")
}

func TestGenerateAll_Wait(t *testing.T) {
	client := jobstest.New("https://cdn.test/out.png")
	orch := generation.NewOrchestrator(client, zerolog.Nop())

	var out bytes.Buffer
	prompts := []string{"one", "two", "three"}
	err := generateAll(context.Background(), orch, prompts, generateOptions{
		Wait:     true,
		Parallel: 3,
		Policy:   fastPolicy(),
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out.String(), "completed"))
	assert.NotContains(t, out.String(), "IMAGE GENERATION")
	assert.Equal(t, 3, strings.Count(out.String(), "https://cdn.test/out.png"))
	for _, id := range []string{"req-1", "req-2", "req-3"} {
		assert.Equal(t, 3, client.Polls(id))
	}
}

func TestGenerateAll_ReportsFailures(t *testing.T) {
	client := jobstest.New("")
	client.SubmitErr = apperr.New(apperr.KindSubmission, "image generation request was rejected")
	orch := generation.NewOrchestrator(client, zerolog.Nop())

	var out bytes.Buffer
	err := generateAll(context.Background(), orch, []string{"x", "y"}, generateOptions{Parallel: 2, Policy: fastPolicy()}, &out)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSubmission))
	assert.Equal(t, 2, strings.Count(out.String(), "error:"))
}

func TestGenerateAll_WaitTimesOut(t *testing.T) {
	client := jobstest.New("")
	client.Script = []jobs.State{jobs.StateRunning}
	orch := generation.NewOrchestrator(client, zerolog.Nop())

	var out bytes.Buffer
	policy := generation.PollPolicy{Interval: time.Millisecond, MaxAttempts: 3}
	err := generateAll(context.Background(), orch, []string{"slow"}, generateOptions{Wait: true, Policy: policy}, &out)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTimedOut))
}

func TestGenerateAll_Details(t *testing.T) {
	client := jobstest.New("https://cdn.test/out.png")
	orch := generation.NewOrchestrator(client, zerolog.Nop())

	var out, details bytes.Buffer
	err := generateAll(context.Background(), orch, []string{"a red bicycle"}, generateOptions{
		Wait:    true,
		Policy:  fastPolicy(),
		Details: &details,
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, details.String(), "IMAGE GENERATION")
	assert.Contains(t, details.String(), "https://cdn.test/out.png")
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "a b", shorten("  a \n b "))
	long := strings.Repeat("x", 100)
	got := shorten(long)
	assert.Len(t, []rune(got), 48)
	assert.True(t, strings.HasSuffix(got, "..."))
}
