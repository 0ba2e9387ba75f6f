// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"errors"
	"testing"
)

type plainChannel struct{}

func (plainChannel) Send(uint16, []byte, Condition) (int, error)    { return 0, nil }
func (plainChannel) Receive(uint16, []byte, Condition) (int, error) { return 0, nil }
func (plainChannel) BusBusy() bool                                  { return false }

type abortingChannel struct {
	plainChannel
	aborts int
	err    error
}

func (c *abortingChannel) Abort() error {
	c.aborts++
	return c.err
}

func (c *abortingChannel) Close() error { return c.err }

func TestAbort(t *testing.T) {
	if err := Abort(plainChannel{}); err != nil {
		t.Errorf("Abort on channel without support: %v", err)
	}

	channel := &abortingChannel{}
	if err := Abort(channel); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if channel.aborts != 1 {
		t.Errorf("aborts = %d, want 1", channel.aborts)
	}

	failing := &abortingChannel{err: errors.New("controller wedged")}
	if err := Abort(failing); err == nil {
		t.Error("Abort should propagate the channel's error")
	}
}

func TestClose(t *testing.T) {
	if err := Close(plainChannel{}); err != nil {
		t.Errorf("Close on channel without resources: %v", err)
	}
	failing := &abortingChannel{err: errors.New("close failed")}
	if err := Close(failing); err == nil {
		t.Error("Close should propagate the channel's error")
	}
}

func TestConditionString(t *testing.T) {
	tests := []struct {
		condition Condition
		want      string
	}{
		{Stop, "stop"},
		{RepeatedStart, "repeated-start"},
		{Condition(7), "condition(7)"},
	}
	for _, test := range tests {
		if got := test.condition.String(); got != test.want {
			t.Errorf("Condition(%d).String() = %q, want %q", int(test.condition), got, test.want)
		}
	}
}
