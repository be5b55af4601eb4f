package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_NeverGoesBackwards(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Second), base.Add(time.Second)}
	i := 0

	c := newClock()
	c.now = func() time.Time {
		t := times[i]
		i++
		return t
	}

	assert.Equal(t, base, c.Now())
	assert.Equal(t, base, c.Now(), "expected a wall clock step back to be clamped")
	assert.Equal(t, base.Add(time.Second), c.Now())
}

func Test_normalizeLimit(t *testing.T) {
	assert.Equal(t, MaxQueryLimit, normalizeLimit(0))
	assert.Equal(t, MaxQueryLimit, normalizeLimit(-1))
	assert.Equal(t, MaxQueryLimit, normalizeLimit(MaxQueryLimit+1))
	assert.Equal(t, 10, normalizeLimit(10))
}

func Test_conversationKey(t *testing.T) {
	a, b := conversationKey("carol", "alice")
	assert.Equal(t, "alice", a)
	assert.Equal(t, "carol", b)

	a, b = conversationKey("alice", "carol")
	assert.Equal(t, "alice", a)
	assert.Equal(t, "carol", b)
}
