package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPauseStateCache(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"save and get": func(t *testing.T) {
			ch := NewPauseStateCache(time.Minute)
			ch.SavePaused("workflow_1", true)
			paused, found := ch.GetPaused("workflow_1")
			assert.True(t, found)
			assert.True(t, paused)

			ch.SavePaused("workflow_1", false)
			paused, found = ch.GetPaused("workflow_1")
			assert.True(t, found)
			assert.False(t, paused)
		},
		"missing": func(t *testing.T) {
			ch := NewPauseStateCache(time.Minute)
			_, found := ch.GetPaused("workflow_2")
			assert.False(t, found)
		},
		"invalidate": func(t *testing.T) {
			ch := NewPauseStateCache(time.Minute)
			ch.SavePaused("workflow_1", true)
			ch.Invalidate("workflow_1")
			_, found := ch.GetPaused("workflow_1")
			assert.False(t, found)
		},
		"expiry": func(t *testing.T) {
			ch := NewPauseStateCache(20 * time.Millisecond)
			ch.SavePaused("workflow_1", true)
			time.Sleep(50 * time.Millisecond)
			_, found := ch.GetPaused("workflow_1")
			assert.False(t, found)
		},
		"disabled": func(t *testing.T) {
			ch := NewPauseStateCache(0)
			ch.SavePaused("workflow_1", true)
			_, found := ch.GetPaused("workflow_1")
			assert.False(t, found)
		},
	} {
		t.Run(scenario, fn)
	}
}
