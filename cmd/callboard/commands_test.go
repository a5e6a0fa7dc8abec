package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowOldActionedHelpMatchesServerCutoff(t *testing.T) {
	flag := (&cli{}).listCmd().Flags().Lookup("show-old-actioned")
	require.NotNil(t, flag)

	assert.Contains(t, flag.Usage, "48 hours")
	assert.Equal(t, "false", flag.DefValue)
}
