package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptional(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Optional(""))
	assert.Nil(t, Optional("   \n\t"))
	got := Optional("  Example ")
	if assert.NotNil(t, got) {
		assert.Equal(t, "Example", *got)
	}
}

func TestSubscriptionStateEqual(t *testing.T) {
	t.Parallel()

	a, b := "sub_1", "sub_2"
	assert.True(t, SubscriptionState{}.Equal(SubscriptionState{}))
	assert.True(t, SubscriptionState{IsPremium: true, SubscriptionID: &a}.Equal(SubscriptionState{IsPremium: true, SubscriptionID: &a}))
	assert.False(t, SubscriptionState{IsPremium: true, SubscriptionID: &a}.Equal(SubscriptionState{IsPremium: true, SubscriptionID: &b}))
	assert.False(t, SubscriptionState{IsPremium: true}.Equal(SubscriptionState{}))
	assert.False(t, SubscriptionState{SubscriptionID: &a}.Equal(SubscriptionState{}))
}

func TestPortfolioKeyPrefersSlug(t *testing.T) {
	t.Parallel()

	slug := "jane-doe"
	assert.Equal(t, "jane-doe", User{ID: "u1", CustomSlug: &slug}.PortfolioKey())
	assert.Equal(t, "u1", User{ID: "u1"}.PortfolioKey())
}
