// Package jobstest provides an in-memory jobs.Client for tests.
package jobstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonathan/campaign-studio/internal/apperr"
	"github.com/jonathan/campaign-studio/internal/jobs"
)

// Client is a scripted jobs.Client. Every submitted request walks through
// Script, one entry per PollStatus call, and then stays on the last entry.
type Client struct {
	mu sync.Mutex

	// Script is the sequence of states reported for each request.
	Script []jobs.State
	// ResultURL is returned by FetchResult. Empty means no result.
	ResultURL string
	// SubmitErr, when set, is returned by Submit.
	SubmitErr error
	// PollErr, when set, is returned by PollStatus.
	PollErr error

	submitted []jobs.Params
	polls     map[string]int
	fetches   int
}

// New returns a Client whose requests move queued -> running -> completed.
func New(resultURL string) *Client {
	return &Client{
		Script:    []jobs.State{jobs.StateQueued, jobs.StateRunning, jobs.StateCompleted},
		ResultURL: resultURL,
	}
}

// Submit implements jobs.Client.
func (c *Client) Submit(_ context.Context, params jobs.Params) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubmitErr != nil {
		return "", c.SubmitErr
	}
	c.submitted = append(c.submitted, params)
	return fmt.Sprintf("req-%d", len(c.submitted)), nil
}

// PollStatus implements jobs.Client.
func (c *Client) PollStatus(_ context.Context, id string) (jobs.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PollErr != nil {
		return "", c.PollErr
	}
	if !c.known(id) {
		return "", apperr.New(apperr.KindNotFound, "generation request not found")
	}
	if c.polls == nil {
		c.polls = make(map[string]int)
	}
	i := c.polls[id]
	c.polls[id]++
	if i >= len(c.Script) {
		i = len(c.Script) - 1
	}
	return c.Script[i], nil
}

// FetchResult implements jobs.Client.
func (c *Client) FetchResult(_ context.Context, id string) (*string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.known(id) {
		return nil, apperr.New(apperr.KindNotFound, "generation request not found")
	}
	c.fetches++
	if c.ResultURL == "" {
		return nil, nil
	}
	ref := c.ResultURL
	return &ref, nil
}

func (c *Client) known(id string) bool {
	for i := range c.submitted {
		if fmt.Sprintf("req-%d", i+1) == id {
			return true
		}
	}
	return false
}

// Submitted returns the params of every accepted Submit call.
func (c *Client) Submitted() []jobs.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]jobs.Params(nil), c.submitted...)
}

// Polls returns how many times id was polled.
func (c *Client) Polls(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls[id]
}

// Fetches returns the number of FetchResult calls for known requests.
func (c *Client) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}
