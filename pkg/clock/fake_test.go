package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	c := Fake(epoch)
	assert.Equal(t, epoch, c.Now())

	c.Advance(time.Minute)
	assert.Equal(t, epoch.Add(time.Minute), c.Now())
}

func TestFakeClockAfterAdvances(t *testing.T) {
	c := Fake(epoch)

	fired := <-c.After(time.Second)
	assert.Equal(t, epoch.Add(time.Second), fired)
	assert.Equal(t, epoch.Add(time.Second), c.Now())

	<-c.After(2 * time.Second)
	assert.Equal(t, 3*time.Second, c.Waited())
	assert.Equal(t, 2, c.AfterCount())
}

func TestFakeClockAfterNonPositive(t *testing.T) {
	c := Fake(epoch)

	select {
	case got := <-c.After(-time.Second):
		assert.Equal(t, epoch, got)
	default:
		t.Fatal("After(-1s) should fire immediately")
	}
	assert.Equal(t, time.Duration(0), c.Waited())
}
