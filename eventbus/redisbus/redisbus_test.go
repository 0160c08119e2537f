package redisbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamKey_PrefixesChannelName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "spice:eventbus:runs", streamKey("runs"))
}

func TestIsBusyGroupErr_MatchesExactMessage(t *testing.T) {
	t.Parallel()
	assert.True(t, isBusyGroupErr(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroupErr(errors.New("some other error")))
	assert.False(t, isBusyGroupErr(nil))
}

func TestNew_DefaultsGroupWhenEmpty(t *testing.T) {
	t.Parallel()
	b := New(nil, nil, nil, "")
	assert.Equal(t, defaultGroup, b.group)

	b2 := New(nil, nil, nil, "custom-group")
	assert.Equal(t, "custom-group", b2.group)
}
