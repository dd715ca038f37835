package dummy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/immersion-se/controller/pkg/relay"
	"github.com/stretchr/testify/assert"
)

func TestDummy(t *testing.T) {
	d := New()
	assert.True(t, errors.Is(d.TurnOn(context.Background(), time.Time{}), relay.ErrNotSupported))
	assert.False(t, d.State().On)

	assert.NoError(t, d.TurnOn(context.Background(), time.Now().Add(time.Hour)))
	assert.True(t, d.State().On)
	assert.True(t, d.State().HasTimer)

	assert.NoError(t, d.TurnOff(context.Background()))
	assert.False(t, d.State().On)
}
