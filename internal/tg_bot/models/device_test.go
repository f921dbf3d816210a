package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTogglePolicy(t *testing.T) {
	const restricted = Policy("Policy0")

	assert.Equal(t, PolicyDefault, TogglePolicy(restricted, restricted))
	assert.Equal(t, restricted, TogglePolicy(PolicyDefault, restricted))
	assert.Equal(t, restricted, TogglePolicy("Policy1", restricted))
	assert.Equal(t, restricted, TogglePolicy("", restricted))

	// any start lands in the {restricted, default} cycle after one step
	for _, start := range []Policy{restricted, PolicyDefault, "Policy1", ""} {
		once := TogglePolicy(start, restricted)
		twice := TogglePolicy(once, restricted)
		assert.Contains(t, []Policy{restricted, PolicyDefault}, once)
		assert.NotEqual(t, once, twice)
		assert.Equal(t, once, TogglePolicy(twice, restricted))
	}
}

func TestFavoriteDevices_Find(t *testing.T) {
	fav := FavoriteDevices{
		{MAC: "aa:bb:cc:dd:ee:01", Name: "Laptop"},
		{MAC: "aa:bb:cc:dd:ee:02", Name: "Phone"},
	}

	d, ok := fav.Find("AA:BB:CC:DD:EE:02")
	assert.True(t, ok)
	assert.Equal(t, "Phone", d.Name)

	_, ok = fav.Find("ff:ff:ff:ff:ff:ff")
	assert.False(t, ok)
}

func TestChatSession_HasPanel(t *testing.T) {
	assert.False(t, ChatSession{ChatID: 1}.HasPanel())
	assert.True(t, ChatSession{ChatID: 1, LastMessageID: 10}.HasPanel())
}
