package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNavigator(t *testing.T) {
	t.Run("Push Suppresses Duplicates", func(t *testing.T) {
		n := NewNavigator(0, nil)
		n.Push(ViewDashboard)
		n.Push(ViewDashboard)
		n.Push(ViewSelectPrawn)
		n.Push(ViewSelectPrawn)

		assert.Equal(t, []View{ViewDashboard, ViewSelectPrawn}, n.History())
	})

	t.Run("Back Pops To Previous", func(t *testing.T) {
		n := NewNavigator(0, nil)
		n.Reset(ViewDashboard)
		n.Push(ViewSelectPrawn)
		n.Push(ViewHistory)

		v, ok := n.Back(ViewDashboard)
		assert.True(t, ok)
		assert.Equal(t, ViewSelectPrawn, v)
		assert.Equal(t, []View{ViewDashboard, ViewSelectPrawn}, n.History())
	})

	t.Run("Back At Root Redirects", func(t *testing.T) {
		n := NewNavigator(0, nil)
		n.Reset(ViewSelectPrawn)

		v, ok := n.Back(ViewDashboard)
		assert.True(t, ok)
		assert.Equal(t, ViewDashboard, v)
		assert.Equal(t, []View{ViewDashboard}, n.History())
	})

	t.Run("Back On Empty Stack", func(t *testing.T) {
		n := NewNavigator(0, nil)
		_, ok := n.Back(ViewDashboard)
		assert.False(t, ok)
		assert.Zero(t, n.Len())
	})

	t.Run("Back Cooldown", func(t *testing.T) {
		c := newClock()
		n := NewNavigator(500*time.Millisecond, c.Now)
		n.Reset(ViewDashboard)
		n.Push(ViewSelectPrawn)
		n.Push(ViewRegisterPrawn)
		n.Push(ViewLocationSetup)

		_, ok := n.Back(ViewDashboard)
		assert.True(t, ok)

		c.Advance(100 * time.Millisecond)
		_, ok = n.Back(ViewDashboard)
		assert.False(t, ok, "second back inside the cooldown is ignored")
		assert.Equal(t, 3, n.Len())

		c.Advance(500 * time.Millisecond)
		v, ok := n.Back(ViewDashboard)
		assert.True(t, ok)
		assert.Equal(t, ViewSelectPrawn, v)
	})

	t.Run("ReplaceTop", func(t *testing.T) {
		n := NewNavigator(0, nil)
		n.ReplaceTop(ViewDashboard)
		assert.Equal(t, []View{ViewDashboard}, n.History())

		n.Push(ViewHistory)
		n.ReplaceTop(ViewSelectPrawn)
		assert.Equal(t, []View{ViewDashboard, ViewSelectPrawn}, n.History())
	})
}

func TestParseView(t *testing.T) {
	for _, v := range Views {
		got, ok := ParseView(string(v))
		assert.True(t, ok, v)
		assert.Equal(t, v, got)
		assert.NotEmpty(t, v.Title())
	}

	_, ok := ParseView("settings")
	assert.False(t, ok)
}
