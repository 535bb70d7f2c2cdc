package zoom

import (
	"math"
	"testing"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testViewport = domain.Viewport{Width: 975, Height: 610}
	texasBounds  = domain.BBox{Min: domain.Point{X: 300, Y: 350}, Max: domain.Point{X: 500, Y: 550}}
	ohioBounds   = domain.BBox{Min: domain.Point{X: 700, Y: 200}, Max: domain.Point{X: 740, Y: 250}}
)

func TestFit(t *testing.T) {
	got := Fit(texasBounds, testViewport)

	k := 0.9 / (200.0 / 610.0)
	assert.InDelta(t, k, got.K, 1e-9)
	assert.InDelta(t, 487.5-k*400, got.X, 1e-9)
	assert.InDelta(t, 305-k*450, got.Y, 1e-9)

	center := got.Apply(texasBounds.Center())
	assert.InDelta(t, 487.5, center.X, 1e-9)
	assert.InDelta(t, 305, center.Y, 1e-9)
}

func TestFit_Clamped(t *testing.T) {
	tests := []struct {
		name   string
		bounds domain.BBox
		wantK  float64
	}{
		{"tiny region clamps to max", domain.BBox{Min: domain.Point{X: 10, Y: 10}, Max: domain.Point{X: 11, Y: 11}}, domain.MaxScale},
		{"zero area", domain.BBox{Min: domain.Point{X: 10, Y: 10}, Max: domain.Point{X: 10, Y: 10}}, domain.MaxScale},
		{"zero width", domain.BBox{Min: domain.Point{X: 10, Y: 10}, Max: domain.Point{X: 10, Y: 400}}, 0.9 / (390.0 / 610.0) * 1},
		{"larger than viewport clamps to min", domain.BBox{Min: domain.Point{X: -500, Y: -500}, Max: domain.Point{X: 1500, Y: 1500}}, domain.MinScale},
		{"empty box is identity", domain.EmptyBBox(), 1},
		{"NaN box is identity", domain.BBox{Min: domain.Point{X: math.NaN()}, Max: domain.Point{X: 1, Y: 1}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(tt.bounds, testViewport)
			assert.InDelta(t, domain.ClampScale(tt.wantK), got.K, 1e-9)
			assert.False(t, math.IsNaN(got.X) || math.IsInf(got.X, 0))
			assert.False(t, math.IsNaN(got.Y) || math.IsInf(got.Y, 0))
		})
	}
}

func TestReduce(t *testing.T) {
	idle := State{Viewport: testViewport}

	t.Run("idle click focuses", func(t *testing.T) {
		next, fx := Reduce(idle, Event{Kind: ClickRegion, Region: "Texas", Bounds: texasBounds})

		assert.Equal(t, Focused, next.Phase)
		assert.Equal(t, "Texas", next.Region)
		assert.True(t, fx.Animate)
		assert.Equal(t, Fit(texasBounds, testViewport), fx.Target)
		assert.Equal(t, testViewport.Center(), fx.Anchor)
		require.True(t, fx.Emit)
		require.NotNil(t, fx.Selected)
		assert.Equal(t, "Texas", *fx.Selected)
		assert.Equal(t, Idle, idle.Phase, "input state untouched")
	})

	t.Run("same region toggles off", func(t *testing.T) {
		focused := State{Viewport: testViewport, Phase: Focused, Region: "Texas"}
		anchor := domain.Point{X: 12, Y: 34}

		next, fx := Reduce(focused, Event{Kind: ClickRegion, Region: "Texas", Bounds: texasBounds, Anchor: &anchor})

		assert.Equal(t, Idle, next.Phase)
		assert.Empty(t, next.Region)
		assert.Equal(t, domain.Identity, fx.Target)
		assert.Equal(t, anchor, fx.Anchor)
		assert.True(t, fx.Emit)
		assert.Nil(t, fx.Selected)
	})

	t.Run("other region retargets", func(t *testing.T) {
		focused := State{Viewport: testViewport, Phase: Focused, Region: "Texas"}

		next, fx := Reduce(focused, Event{Kind: ClickRegion, Region: "Ohio", Bounds: ohioBounds})

		assert.Equal(t, "Ohio", next.Region)
		assert.Equal(t, Fit(ohioBounds, testViewport), fx.Target)
		require.NotNil(t, fx.Selected)
		assert.Equal(t, "Ohio", *fx.Selected)
	})

	t.Run("deselect while idle does not emit", func(t *testing.T) {
		next, fx := Reduce(idle, Event{Kind: Deselect})
		assert.Equal(t, Idle, next.Phase)
		assert.False(t, fx.Emit)
		assert.Equal(t, domain.Identity, fx.Target)
	})

	t.Run("deselect while focused emits nil", func(t *testing.T) {
		next, fx := Reduce(State{Viewport: testViewport, Phase: Focused, Region: "Ohio"}, Event{Kind: Deselect})
		assert.Equal(t, Idle, next.Phase)
		assert.True(t, fx.Emit)
		assert.Nil(t, fx.Selected)
	})
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "focused", Focused.String())
}
