package meter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheSwap(t *testing.T) {
	c := &Cache{}
	_, ok := c.Swap(&Data{Total_WH: 1000})
	assert.False(t, ok)

	wh, ok := c.Swap(&Data{Total_WH: 2500})
	assert.True(t, ok)
	assert.Equal(t, 1500.0, wh)

	// meter replaced
	_, ok = c.Swap(&Data{Total_WH: 10})
	assert.False(t, ok)

	wh, ok = c.Swap(&Data{Total_WH: 40})
	assert.True(t, ok)
	assert.Equal(t, 30.0, wh)
}
