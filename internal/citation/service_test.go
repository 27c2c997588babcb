package citation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *memRepo, *memCache) {
	repo := newMemRepo()
	cache := newMemCache()
	return NewService(repo, cache, newChanLock(), "@test_bot"), repo, cache
}

func TestService_AddManual(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	c, err := svc.AddManual(ctx, 5, 100, "/cite Great quote (c) Bob", nil)
	require.NoError(t, err)
	assert.Equal(t, FirstRow, c.Row)

	stored, err := repo.Get(ctx, c.Row)
	require.NoError(t, err)
	assert.Equal(t, "Bob", stored.Who)
	assert.Equal(t, "Great quote", stored.What)
	assert.Equal(t, "by @test_bot", stored.Comment)
	assert.Empty(t, stored.Likes)
	require.NotNil(t, stored.Source)
	assert.Equal(t, SourceManual, stored.Source.Type)
	assert.Equal(t, int64(5), stored.Source.ChatID)
	assert.Equal(t, 100, stored.Source.MessageID)

	row, ok, err := svc.Index().Lookup(ctx, 5, 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c.Row, row)
}

func TestService_AddManual_ParseError(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.AddManual(context.Background(), 5, 100, "/cite no author here", nil)
	require.ErrorIs(t, err, ErrParse)
	assert.Empty(t, repo.rows)
}

func TestService_AddForwardNotIndexed(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	c := &Citation{
		Who:    "Alice",
		What:   "forwarded",
		Source: &Source{Type: SourceForward, ChatID: 5, MessageID: 200},
	}
	require.NoError(t, svc.Add(ctx, c))

	_, ok, err := svc.Index().Lookup(ctx, 5, 200)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_ApplyEdit(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	c, err := svc.AddManual(ctx, 5, 100, "/cite Great quote (c) Bob", nil)
	require.NoError(t, err)
	_, err = svc.ToggleLike(ctx, c.Row, "42")
	require.NoError(t, err)

	row, applied, err := svc.ApplyEdit(ctx, 5, 100, "/cite Better quote (c) Robert", []Span{{Offset: 6, Length: 6, Style: StyleBold}})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, c.Row, row)

	stored, _ := repo.Get(ctx, c.Row)
	assert.Equal(t, "Robert", stored.Who)
	assert.Equal(t, "Better quote", stored.What)
	assert.Equal(t, []Span{{Offset: 0, Length: 6, Style: StyleBold}}, stored.Spans)
	assert.True(t, stored.Likes.Has("42"), "likes survive edits")
	assert.Equal(t, SourceManual, stored.Source.Type, "source survives edits")
}

func TestService_ApplyEdit_Ignored(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	c, err := svc.AddManual(ctx, 5, 100, "/cite Great quote (c) Bob", nil)
	require.NoError(t, err)

	t.Run("untracked message", func(t *testing.T) {
		_, applied, err := svc.ApplyEdit(ctx, 5, 101, "/cite x (c) y", nil)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("unparsable edit", func(t *testing.T) {
		_, applied, err := svc.ApplyEdit(ctx, 5, 100, "/cite no delimiter", nil)
		require.NoError(t, err)
		assert.False(t, applied)

		stored, _ := repo.Get(ctx, c.Row)
		assert.Equal(t, "Great quote", stored.What)
	})
}

func TestService_ApplyEdit_AfterCacheLoss(t *testing.T) {
	ctx := context.Background()
	svc, _, cache := newTestService()

	_, err := svc.AddManual(ctx, 5, 100, "/cite Great quote (c) Bob", nil)
	require.NoError(t, err)

	// The cache forgets everything; the index is rebuilt from the rows.
	cache.mu.Lock()
	cache.data = map[string]string{}
	cache.mu.Unlock()

	_, applied, err := svc.ApplyEdit(ctx, 5, 100, "/cite Edited (c) Bob", nil)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestService_ApplyEdit_StaleIndexEntry(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	c, err := svc.AddManual(ctx, 5, 100, "/cite Original (c) Bob", nil)
	require.NoError(t, err)

	// The row is replaced by hand while the cached index still points at it.
	repo.put(&Citation{
		Row:    c.Row,
		Who:    "Carol",
		What:   "Someone else",
		Source: ManualSource(7, 555),
	})

	row, applied, err := svc.ApplyEdit(ctx, 5, 100, "/cite Vandalised (c) Alice", nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Zero(t, row)

	stored, _ := repo.Get(ctx, c.Row)
	assert.Equal(t, "Carol", stored.Who)
	assert.Equal(t, "Someone else", stored.What)
}

func TestService_ApplyEdit_RowDeleted(t *testing.T) {
	ctx := context.Background()

	t.Run("before lookup", func(t *testing.T) {
		svc, repo, _ := newTestService()
		c, err := svc.AddManual(ctx, 5, 100, "/cite Original (c) Bob", nil)
		require.NoError(t, err)
		repo.remove(c.Row)

		_, applied, err := svc.ApplyEdit(ctx, 5, 100, "/cite Edited (c) Bob", nil)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("between lookup and write", func(t *testing.T) {
		svc, repo, _ := newTestService()
		c, err := svc.AddManual(ctx, 5, 100, "/cite Original (c) Bob", nil)
		require.NoError(t, err)
		repo.onUpdate = func() { repo.remove(c.Row) }

		_, applied, err := svc.ApplyEdit(ctx, 5, 100, "/cite Edited (c) Bob", nil)
		require.NoError(t, err)
		assert.False(t, applied)
	})
}

func TestService_ToggleLike_DoubleToggle(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	c, err := svc.AddManual(ctx, 5, 100, "/cite q (c) w", nil)
	require.NoError(t, err)
	_, err = svc.ToggleLike(ctx, c.Row, "other")
	require.NoError(t, err)

	first, err := svc.ToggleLike(ctx, c.Row, "voter")
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Count: 2, Liked: true}, first)

	second, err := svc.ToggleLike(ctx, c.Row, "voter")
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Count: 1, Liked: false}, second)

	stored, _ := repo.Get(ctx, c.Row)
	assert.Equal(t, []string{"other"}, stored.Likes.Voters())
}

func TestService_ToggleLike_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.ToggleLike(context.Background(), 99, "voter")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ToggleLike(context.Background(), 1, "voter")
	assert.ErrorIs(t, err, ErrNotFound)
}

// The lock must keep two toggles from reading the same pre-toggle set.
func TestService_ToggleLike_ForcedInterleaving(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	c, err := svc.AddManual(ctx, 5, 100, "/cite q (c) w", nil)
	require.NoError(t, err)

	var inside atomic.Int32
	var overlapped atomic.Bool
	repo.onGet = func() {
		if inside.Add(1) > 1 {
			overlapped.Store(true)
		}
		// Hold the read open long enough for the other toggle to try to interleave.
		time.Sleep(20 * time.Millisecond)
		inside.Add(-1)
	}

	var wg sync.WaitGroup
	for _, voter := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(voter string) {
			defer wg.Done()
			_, err := svc.ToggleLike(ctx, c.Row, voter)
			assert.NoError(t, err)
		}(voter)
	}
	wg.Wait()

	assert.False(t, overlapped.Load(), "toggles interleaved inside the critical section")
	repo.onGet = nil
	stored, _ := repo.Get(ctx, c.Row)
	assert.Equal(t, []string{"alice", "bob"}, stored.Likes.Voters())
}

func TestService_ToggleLike_ConcurrentVoters(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	c, err := svc.AddManual(ctx, 5, 100, "/cite q (c) w", nil)
	require.NoError(t, err)

	const voters = 30
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ToggleLike(ctx, c.Row, fmt.Sprint(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, _ := repo.Get(ctx, c.Row)
	assert.Len(t, stored.Likes, voters)
}

func TestService_SetComment(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	manual, err := svc.AddManual(ctx, 5, 100, "/cite q (c) w", nil)
	require.NoError(t, err)
	require.NoError(t, svc.SetComment(ctx, manual.Row, "  at the party  "))
	stored, _ := repo.Get(ctx, manual.Row)
	assert.Equal(t, "at the party", stored.Comment)

	reply := &Citation{
		Who:     "w",
		What:    "q",
		Comment: BackReference(MessageRef{ChatID: 5, MessageID: 9}),
		Source:  &Source{Type: SourceReply, ChatID: 5, MessageID: 10, ReplyTo: &MessageRef{ChatID: 5, MessageID: 9}},
	}
	require.NoError(t, svc.Add(ctx, reply))
	assert.ErrorIs(t, svc.SetComment(ctx, reply.Row, "context"), ErrCommentLocked)

	assert.ErrorIs(t, svc.SetComment(ctx, 500, "x"), ErrNotFound)
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.AddManual(ctx, 5, 1, "/cite hello there (c) Obi", nil)
	require.NoError(t, err)
	_, err = svc.AddManual(ctx, 5, 2, "/cite general (c) Grievous", nil)
	require.NoError(t, err)

	_, err = svc.Search(ctx, " he ")
	assert.ErrorIs(t, err, ErrQueryTooShort)

	found, err := svc.Search(ctx, "hello")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Obi", found[0].Who)
}

func TestService_GetAndRandom(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.Random(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := svc.AddManual(ctx, 5, 1, "/cite a (c) b", nil)
	require.NoError(t, err)

	got, err := svc.Get(ctx, c.Row)
	require.NoError(t, err)
	assert.Equal(t, "a", got.What)

	random, err := svc.Random(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.Row, random.Row)
}
