package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunExitCodes(t *testing.T) {
	assert.Equal(t, 2, run([]string{"--store", "bogus"}), "bad configuration")
	assert.Equal(t, 2, run([]string{"--log-level", "loud"}), "bad log level")
	assert.Equal(t, 1, run([]string{"--log-level", "error", "localboard://nohostport/main"}), "bad share link")
}
