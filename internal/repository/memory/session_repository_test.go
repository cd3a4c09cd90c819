package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"kbchat-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHistoryUnknownSessionIsEmpty(t *testing.T) {
	repo := NewSessionRepository(time.Hour, 0)

	turns, err := repo.GetHistory(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, turns)
	assert.Empty(t, turns)
}

func TestAppendKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Hour, 0)
	now := time.Now()

	require.NoError(t, repo.Append(ctx, "s1", entity.NewUserTurn("q1", now)))
	require.NoError(t, repo.Append(ctx, "s1", entity.NewAssistantTurn("a1", now)))
	require.NoError(t, repo.Append(ctx, "s1", entity.NewUserTurn("q2", now)))

	turns, err := repo.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "q1", turns[0].Text)
	assert.Equal(t, entity.ChatRoleAssistant, turns[1].Role)
	assert.Equal(t, "q2", turns[2].Text)
}

func TestAppendAcceptsNonAlternatingTurns(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Hour, 0)

	require.NoError(t, repo.Append(ctx, "s1", entity.NewUserTurn("a", time.Now()), entity.NewUserTurn("b", time.Now())))

	turns, _ := repo.GetHistory(ctx, "s1")
	assert.Len(t, turns, 2)
}

func TestClearEmptiesHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Hour, 0)
	require.NoError(t, repo.Append(ctx, "s1", entity.NewUserTurn("hello", time.Now())))

	require.NoError(t, repo.Clear(ctx, "s1"))
	require.NoError(t, repo.Clear(ctx, "never-existed"))

	turns, err := repo.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMaxTurnsDropsOldest(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Hour, 4)

	for i := 0; i < 6; i++ {
		require.NoError(t, repo.Append(ctx, "s1", entity.NewUserTurn(fmt.Sprintf("m%d", i), time.Now())))
	}

	turns, _ := repo.GetHistory(ctx, "s1")
	require.Len(t, turns, 4)
	assert.Equal(t, "m2", turns[0].Text)
	assert.Equal(t, "m5", turns[3].Text)
}

func TestGetHistoryReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Hour, 0)
	require.NoError(t, repo.Append(ctx, "s1", entity.NewUserTurn("original", time.Now())))

	turns, _ := repo.GetHistory(ctx, "s1")
	turns[0].Text = "mutated"

	again, _ := repo.GetHistory(ctx, "s1")
	assert.Equal(t, "original", again[0].Text)
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Hour, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.Append(ctx, "shared", entity.NewUserTurn(fmt.Sprintf("m%d", i), time.Now()))
		}(i)
	}
	wg.Wait()

	turns, _ := repo.GetHistory(ctx, "shared")
	assert.Len(t, turns, 50)
	assert.Equal(t, 1, repo.Count())
}

func TestAppendOnClearedEntryStartsFresh(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Hour, 0)
	require.NoError(t, repo.Append(ctx, "s1", entity.NewUserTurn("before", time.Now())))

	// An append that looked the entry up just before the clear landed.
	stale := repo.getOrCreate("s1")
	require.NoError(t, repo.Clear(ctx, "s1"))
	assert.False(t, repo.appendTo(stale, "s1", []entity.ChatTurn{entity.NewUserTurn("late", time.Now())}))

	turns, _ := repo.GetHistory(ctx, "s1")
	assert.Empty(t, turns)

	require.NoError(t, repo.Append(ctx, "s1", entity.NewUserTurn("after", time.Now())))
	turns, _ = repo.GetHistory(ctx, "s1")
	require.Len(t, turns, 1)
	assert.Equal(t, "after", turns[0].Text)
}

func TestConcurrentClearNeverResurrectsHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Hour, 0)

	for round := 0; round < 200; round++ {
		require.NoError(t, repo.Append(ctx, "s1", entity.NewUserTurn("old", time.Now())))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = repo.Append(ctx, "s1", entity.NewUserTurn("new", time.Now()))
		}()
		go func() {
			defer wg.Done()
			_ = repo.Clear(ctx, "s1")
		}()
		wg.Wait()

		// Either the clear won outright or the new turn landed after it.
		turns, _ := repo.GetHistory(ctx, "s1")
		for _, turn := range turns {
			require.NotEqual(t, "old", turn.Text, "round %d", round)
		}
		require.NoError(t, repo.Clear(ctx, "s1"))
	}
}
