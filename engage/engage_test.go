package engage

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nguyenanhtuan21/threads-manager/storage"
)

func TestRangeDraw(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("stays in bounds", func(t *testing.T) {
		r := Range{Min: 3, Max: 10}
		for i := 0; i < 1000; i++ {
			v := r.Draw(rng)
			assert.GreaterOrEqual(t, v, 3)
			assert.LessOrEqual(t, v, 10)
		}
	})

	t.Run("bounds are inclusive", func(t *testing.T) {
		r := Range{Min: 0, Max: 1}
		seen := map[int]bool{}
		for i := 0; i < 200; i++ {
			seen[r.Draw(rng)] = true
		}
		assert.True(t, seen[0])
		assert.True(t, seen[1])
	})

	t.Run("equal bounds are deterministic", func(t *testing.T) {
		r := Range{Min: 5, Max: 5}
		for i := 0; i < 10; i++ {
			assert.Equal(t, 5, r.Draw(rng))
		}
	})

	t.Run("inverted range collapses to min", func(t *testing.T) {
		r := Range{Min: 10, Max: 2}
		assert.Equal(t, 10, r.Draw(rng))
	})
}

func TestRangeDrawDuration(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := Range{Min: 2, Max: 4}
	for i := 0; i < 100; i++ {
		d := r.DrawDuration(rng, time.Second)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 4*time.Second)
	}
}

func TestShouldAttempt(t *testing.T) {
	assert.True(t, shouldAttempt(true, 0, 5))
	assert.True(t, shouldAttempt(true, 4, 5))
	assert.False(t, shouldAttempt(true, 5, 5), "quota reached disables the type")
	assert.False(t, shouldAttempt(true, 6, 5))
	assert.False(t, shouldAttempt(false, 0, 5), "disabled type never attempts")
	assert.False(t, shouldAttempt(true, 0, 0), "zero target means no attempts")
}

func TestDrawGoals(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cfg := &storage.FarmConfig{
		EnableLike:     true,
		EnableFollow:   false,
		LikeCountMin:   3,
		LikeCountMax:   10,
		FollowCountMin: 1,
		FollowCountMax: 5,
		ScrollTimeMin:  60,
		ScrollTimeMax:  300,
	}

	for i := 0; i < 100; i++ {
		goals := DrawGoals(cfg, rng)
		assert.True(t, goals.EnableLike)
		assert.False(t, goals.EnableFollow)
		assert.GreaterOrEqual(t, goals.LikeTarget, 3)
		assert.LessOrEqual(t, goals.LikeTarget, 10)
		assert.GreaterOrEqual(t, goals.FollowTarget, 1)
		assert.LessOrEqual(t, goals.FollowTarget, 5)
		assert.GreaterOrEqual(t, goals.Duration, 60*time.Second)
		assert.LessOrEqual(t, goals.Duration, 300*time.Second)
	}
}
