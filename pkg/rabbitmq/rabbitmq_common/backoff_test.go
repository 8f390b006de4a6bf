package rabbitmq_common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffSequenceIsCapped(t *testing.T) {
	b := DefaultBackoff()

	want := []time.Duration{
		500 * time.Millisecond,
		750 * time.Millisecond,
		1125 * time.Millisecond,
		1687500 * time.Microsecond,
	}
	delay := b.Initial
	for i, expected := range want {
		assert.Equal(t, expected, delay, "step %d", i)
		delay = b.Next(delay)
	}

	for i := 0; i < 20; i++ {
		delay = b.Next(delay)
	}
	assert.Equal(t, 10*time.Second, delay)
}

func TestBackoffWithDefaults(t *testing.T) {
	b := BackoffConfig{Multiplier: 0.5}.withDefaults()

	assert.Equal(t, DefaultBackoffInitial, b.Initial)
	assert.Equal(t, DefaultBackoffMax, b.Max)
	assert.Equal(t, DefaultBackoffMultiplier, b.Multiplier)
}
