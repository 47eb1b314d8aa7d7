package playersession

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteFor_District(t *testing.T) {
	assert.True(t, RouteFor(ChatSay).District)
	assert.True(t, RouteFor(ChatYell).District)
}

func TestRouteFor_Named(t *testing.T) {
	assert.True(t, RouteFor(ChatWhisper).Named)
	assert.True(t, RouteFor(ChatGroup).Named)
}

func TestRouteFor_Global(t *testing.T) {
	assert.True(t, RouteFor(ChatSystem).Global)
	assert.True(t, RouteFor(ChatBroadcast).Global)
}
