package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusFilled.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusNew.Terminal())
	assert.False(t, StatusPartiallyFilled.Terminal())

	assert.True(t, OrderResult{Status: StatusFilled}.Filled())
	assert.False(t, OrderResult{Status: StatusNew}.Filled())
}

func TestSideOpposite(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}
