package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/minitwitter/backend/internal/apperror"
	"github.com/anonto42/minitwitter/backend/internal/models"
	"github.com/anonto42/minitwitter/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type followEvent struct {
	follower string
	followed string
}

type recordingNotifier struct {
	events chan followEvent
	err    error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(chan followEvent, 16)}
}

func (n *recordingNotifier) NotifyFollowed(ctx context.Context, followerID, followedID string) error {
	n.events <- followEvent{follower: followerID, followed: followedID}
	return n.err
}

type fixture struct {
	users    *repositories.MemoryUserRepository
	follows  *repositories.MemoryFollowRepository
	likes    *repositories.MemoryLikeRepository
	posts    *repositories.MemoryPostRepository
	notifier *recordingNotifier

	graph   *GraphService
	likeSvc *LikeService
	postSvc *PostService
	feed    *FeedService
}

func newFixture(t *testing.T, userIDs ...string) *fixture {
	t.Helper()
	f := &fixture{
		users:    repositories.NewMemoryUserRepository(),
		follows:  repositories.NewMemoryFollowRepository(),
		likes:    repositories.NewMemoryLikeRepository(),
		posts:    repositories.NewMemoryPostRepository(),
		notifier: newRecordingNotifier(),
	}
	opts := DefaultOptions()
	f.graph = NewGraphService(f.follows, f.users, f.notifier, opts)
	f.likeSvc = NewLikeService(f.likes, f.posts)
	f.postSvc = NewPostService(f.posts, f.likes, opts)
	f.feed = NewFeedService(f.graph, f.posts, f.likes, opts)

	for _, id := range userIDs {
		require.NoError(t, f.users.CreateUser(context.Background(), &models.User{
			ID: id, Username: id, Email: id + "@example.com",
		}))
	}
	return f
}

func TestFollow_SelfFollowFails(t *testing.T) {
	f := newFixture(t, "a")

	_, err := f.graph.Follow(context.Background(), "a", "a")
	assert.ErrorIs(t, err, apperror.ErrSelfFollow)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestFollow_TwiceConflicts(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()

	edge, err := f.graph.Follow(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a", edge.FollowerID)
	assert.Equal(t, "b", edge.FollowedID)

	_, err = f.graph.Follow(ctx, "a", "b")
	assert.ErrorIs(t, err, apperror.ErrAlreadyFollowing)
}

func TestFollow_UnknownTarget(t *testing.T) {
	f := newFixture(t, "a")

	_, err := f.graph.Follow(context.Background(), "a", "ghost")
	assert.ErrorIs(t, err, apperror.ErrTargetNotFound)
}

func TestFollow_SelfCheckedBeforeExistence(t *testing.T) {
	f := newFixture(t)

	_, err := f.graph.Follow(context.Background(), "ghost", "ghost")
	assert.ErrorIs(t, err, apperror.ErrSelfFollow)
}

func TestUnfollow(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()

	assert.ErrorIs(t, f.graph.Unfollow(ctx, "a", "b"), apperror.ErrNotFollowing)

	_, err := f.graph.Follow(ctx, "a", "b")
	require.NoError(t, err)
	require.NoError(t, f.graph.Unfollow(ctx, "a", "b"))

	ok, err := f.graph.IsFollowing(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, f.graph.Unfollow(ctx, "a", "b"), apperror.ErrNotFollowing)
}

func TestFollowersOf_CountsAtReadTime(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()

	before, err := f.graph.FollowingOf(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, before)

	_, err = f.graph.Follow(ctx, "a", "b")
	require.NoError(t, err)

	followers, err := f.graph.FollowersOf(ctx, "b")
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "a", followers[0].ID)
	assert.EqualValues(t, 0, followers[0].FollowerCount)
	assert.EqualValues(t, 1, followers[0].FollowingCount)

	following, err := f.graph.FollowingOf(ctx, "a")
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "b", following[0].ID)
	assert.EqualValues(t, 1, following[0].FollowerCount)
	assert.EqualValues(t, 0, following[0].FollowingCount)

	_, err = f.graph.FollowersOf(ctx, "ghost")
	assert.ErrorIs(t, err, apperror.ErrTargetNotFound)
}

func TestFollow_ConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()

	const callers = 2
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.graph.Follow(ctx, "a", "b")
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperror.ErrAlreadyFollowing):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	followers, err := f.graph.FollowersOf(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, followers, 1)
}

func TestFollow_NotifiesAsynchronously(t *testing.T) {
	f := newFixture(t, "a", "b")

	_, err := f.graph.Follow(context.Background(), "a", "b")
	require.NoError(t, err)

	select {
	case ev := <-f.notifier.events:
		assert.Equal(t, followEvent{follower: "a", followed: "b"}, ev)
	case <-time.After(time.Second):
		t.Fatal("notification was not dispatched")
	}
}

func TestFollow_NotifierFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.notifier.err = errors.New("broker down")

	_, err := f.graph.Follow(context.Background(), "a", "b")
	require.NoError(t, err)
	<-f.notifier.events
}

func TestFollow_NotificationSurvivesRequestCancel(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())

	var gotErr error
	done := make(chan struct{})
	notifier := notifierFunc(func(nctx context.Context, _, _ string) error {
		cancel()
		gotErr = nctx.Err()
		close(done)
		return nil
	})
	f.graph.notifier = notifier

	_, err := f.graph.Follow(ctx, "a", "b")
	require.NoError(t, err)
	<-done
	assert.NoError(t, gotErr)
}

type notifierFunc func(ctx context.Context, followerID, followedID string) error

func (fn notifierFunc) NotifyFollowed(ctx context.Context, followerID, followedID string) error {
	return fn(ctx, followerID, followedID)
}

func TestLike_TwiceConflictsAndCountsOnce(t *testing.T) {
	f := newFixture(t, "b", "c")
	ctx := context.Background()

	post, err := f.postSvc.CreatePost(ctx, "b", models.PostInput{Text: "hello"})
	require.NoError(t, err)

	_, err = f.likeSvc.Like(ctx, "c", post.ID)
	require.NoError(t, err)
	_, err = f.likeSvc.Like(ctx, "c", post.ID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyLiked)

	likes, err := f.likeSvc.LikesOf(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, likes, 1)
}

func TestLike_ConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t, "b", "c")
	ctx := context.Background()

	post, err := f.postSvc.CreatePost(ctx, "b", models.PostInput{Text: "hello"})
	require.NoError(t, err)

	const callers = 16
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.likeSvc.Like(ctx, "c", post.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperror.ErrAlreadyLiked):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, conflicts)

	likes, err := f.likeSvc.LikesOf(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, likes, 1)
}

// deletingPostStore runs onFirstGet right after the first post lookup, so a
// delete lands between a like's existence check and its insert.
type deletingPostStore struct {
	repositories.PostRepository
	once       sync.Once
	onFirstGet func()
}

func (s *deletingPostStore) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.PostRepository.GetPostByID(ctx, id)
	s.once.Do(s.onFirstGet)
	return post, err
}

func TestLike_PostDeletedDuringLikeLeavesNoRow(t *testing.T) {
	f := newFixture(t, "b", "c")
	ctx := context.Background()

	post, err := f.postSvc.CreatePost(ctx, "b", models.PostInput{Text: "short lived"})
	require.NoError(t, err)

	store := &deletingPostStore{PostRepository: f.posts, onFirstGet: func() {
		require.NoError(t, f.postSvc.DeletePost(ctx, "b", post.ID))
	}}
	likeSvc := NewLikeService(f.likes, store)

	_, err = likeSvc.Like(ctx, "c", post.ID)
	assert.ErrorIs(t, err, apperror.ErrPostNotFound)

	counts, err := f.likes.CountLikesByPostIDs(ctx, []string{post.ID})
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestLike_MissingPost(t *testing.T) {
	f := newFixture(t, "c")
	ctx := context.Background()

	_, err := f.likeSvc.Like(ctx, "c", "nope")
	assert.ErrorIs(t, err, apperror.ErrPostNotFound)
	_, err = f.likeSvc.LikesOf(ctx, "nope")
	assert.ErrorIs(t, err, apperror.ErrPostNotFound)
}

func TestUnlike(t *testing.T) {
	f := newFixture(t, "b", "c")
	ctx := context.Background()

	post, err := f.postSvc.CreatePost(ctx, "b", models.PostInput{Text: "hello"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.likeSvc.Unlike(ctx, "c", post.ID), apperror.ErrNotLiked)
	_, err = f.likeSvc.Like(ctx, "c", post.ID)
	require.NoError(t, err)
	require.NoError(t, f.likeSvc.Unlike(ctx, "c", post.ID))

	likes, err := f.likeSvc.LikesOf(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, likes)
}

func TestCreatePost_Validation(t *testing.T) {
	f := newFixture(t, "b")
	ctx := context.Background()

	_, err := f.postSvc.CreatePost(ctx, "b", models.PostInput{Text: "   "})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	long := make([]rune, 281)
	for i := range long {
		long[i] = 'é'
	}
	_, err = f.postSvc.CreatePost(ctx, "b", models.PostInput{Text: string(long)})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	post, err := f.postSvc.CreatePost(ctx, "b", models.PostInput{Text: string(long[:280])})
	require.NoError(t, err)
	assert.Equal(t, "b", post.AuthorID)
}

func TestCreatePost_TagsAreASet(t *testing.T) {
	f := newFixture(t, "b")

	post, err := f.postSvc.CreatePost(context.Background(), "b", models.PostInput{
		Text: "tagged",
		Tags: []string{"go", " go ", "", "Go"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "Go"}, post.Tags)
}

func TestUpdateAndDeletePost_Ownership(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()

	_, err := f.graph.Follow(ctx, "a", "b")
	require.NoError(t, err)
	post, err := f.postSvc.CreatePost(ctx, "b", models.PostInput{Text: "hello", Tags: []string{"x"}})
	require.NoError(t, err)

	text := "edited"
	_, err = f.postSvc.UpdatePost(ctx, "c", post.ID, models.PostUpdate{Text: &text})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.ErrorIs(t, f.postSvc.DeletePost(ctx, "c", post.ID), apperror.ErrForbidden)

	tags := []string{"y"}
	updated, err := f.postSvc.UpdatePost(ctx, "b", post.ID, models.PostUpdate{Text: &text, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Text)
	assert.Equal(t, []string{"y"}, updated.Tags)
	assert.Equal(t, post.CreatedAt, updated.CreatedAt)

	_, err = f.likeSvc.Like(ctx, "c", post.ID)
	require.NoError(t, err)

	require.NoError(t, f.postSvc.DeletePost(ctx, "b", post.ID))

	page, err := f.feed.ComposeFeed(ctx, "a", FeedQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Results)

	_, err = f.likeSvc.LikesOf(ctx, post.ID)
	assert.ErrorIs(t, err, apperror.ErrPostNotFound)
	counts, err := f.likes.CountLikesByPostIDs(ctx, []string{post.ID})
	require.NoError(t, err)
	assert.Empty(t, counts)

	_, err = f.postSvc.UpdatePost(ctx, "b", post.ID, models.PostUpdate{Text: &text})
	assert.ErrorIs(t, err, apperror.ErrPostNotFound)
}

func TestComposeFeed_NoFollowsIsEmpty(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()

	_, err := f.postSvc.CreatePost(ctx, "b", models.PostInput{Text: "hello"})
	require.NoError(t, err)

	page, err := f.feed.ComposeFeed(ctx, "a", FeedQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Count)
	assert.Empty(t, page.Results)
}

func TestComposeFeed_AnonymousIsEmpty(t *testing.T) {
	f := newFixture(t, "b")

	page, err := f.feed.ComposeFeed(context.Background(), "", FeedQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Results)
}

func TestComposeFeed_FollowedAuthorPost(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()

	_, err := f.graph.Follow(ctx, "a", "b")
	require.NoError(t, err)
	_, err = f.postSvc.CreatePost(ctx, "b", models.PostInput{Text: "hello"})
	require.NoError(t, err)
	_, err = f.postSvc.CreatePost(ctx, "c", models.PostInput{Text: "not followed"})
	require.NoError(t, err)
	_, err = f.postSvc.CreatePost(ctx, "a", models.PostInput{Text: "my own"})
	require.NoError(t, err)

	page, err := f.feed.ComposeFeed(ctx, "a", FeedQuery{})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "hello", page.Results[0].Text)
	assert.EqualValues(t, 0, page.Results[0].LikeCount)
	assert.Equal(t, 1, page.Count)
}

func TestComposeFeed_EqualTimestampsOrderByIDDesc(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := f.graph.Follow(ctx, "a", "b")
	require.NoError(t, err)
	for _, id := range []string{"p-1", "p-3", "p-2"} {
		require.NoError(t, f.posts.CreatePost(ctx, &models.Post{ID: id, AuthorID: "b", Text: id, CreatedAt: at}))
	}

	for _, ordering := range []string{"", "created_at", "-created_at", "like_count", "-like_count"} {
		o, err := ParseOrdering(ordering)
		require.NoError(t, err)
		page, err := f.feed.ComposeFeed(ctx, "a", FeedQuery{Ordering: o})
		require.NoError(t, err)
		assert.Equal(t, []string{"p-3", "p-2", "p-1"}, feedIDs(page), "ordering %q", ordering)
	}
}

func TestComposeFeed_OrderingFiltersAndPaging(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := f.graph.Follow(ctx, "a", "b")
	require.NoError(t, err)
	posts := []models.Post{
		{ID: "p1", AuthorID: "b", Text: "Gophers unite", Tags: []string{"go"}, CreatedAt: base},
		{ID: "p2", AuthorID: "b", Text: "lunch", CreatedAt: base.Add(time.Minute)},
		{ID: "p3", AuthorID: "b", Text: "more GOPHERS", Tags: []string{"go"}, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range posts {
		require.NoError(t, f.posts.CreatePost(ctx, &posts[i]))
	}
	_, err = f.likeSvc.Like(ctx, "a", "p1")
	require.NoError(t, err)
	_, err = f.likeSvc.Like(ctx, "c", "p1")
	require.NoError(t, err)
	_, err = f.likeSvc.Like(ctx, "c", "p2")
	require.NoError(t, err)

	page, err := f.feed.ComposeFeed(ctx, "a", FeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p2", "p1"}, feedIDs(page))

	page, err = f.feed.ComposeFeed(ctx, "a", FeedQuery{Ordering: Ordering{Field: "created_at"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, feedIDs(page))

	page, err = f.feed.ComposeFeed(ctx, "a", FeedQuery{Ordering: Ordering{Field: "like_count", Desc: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, feedIDs(page))
	assert.EqualValues(t, 2, page.Results[0].LikeCount)

	page, err = f.feed.ComposeFeed(ctx, "a", FeedQuery{Ordering: Ordering{Field: "like_count"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p2", "p1"}, feedIDs(page))

	page, err = f.feed.ComposeFeed(ctx, "a", FeedQuery{Tag: "go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1"}, feedIDs(page))

	page, err = f.feed.ComposeFeed(ctx, "a", FeedQuery{Search: "gophers"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1"}, feedIDs(page))

	page, err = f.feed.ComposeFeed(ctx, "a", FeedQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Count)
	assert.Equal(t, []string{"p2"}, feedIDs(page))

	page, err = f.feed.ComposeFeed(ctx, "a", FeedQuery{Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Count)
	assert.Empty(t, page.Results)

	page, err = f.feed.ComposeFeed(ctx, "a", FeedQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
}

func TestParseOrdering(t *testing.T) {
	o, err := ParseOrdering("")
	require.NoError(t, err)
	assert.Equal(t, DefaultOrdering, o)

	o, err = ParseOrdering("-like_count")
	require.NoError(t, err)
	assert.Equal(t, Ordering{Field: "like_count", Desc: true}, o)
	assert.Equal(t, "-like_count", o.String())

	_, err = ParseOrdering("author")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestComposeFeed_CancelledContextIsTransient(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.feed.ComposeFeed(ctx, "a", FeedQuery{})
	require.Error(t, err)
	assert.Equal(t, apperror.KindTransient, apperror.KindOf(err))
	assert.False(t, apperror.Retryable(err))
}

func feedIDs(page *FeedPage) []string {
	ids := make([]string, len(page.Results))
	for i, p := range page.Results {
		ids[i] = p.ID
	}
	return ids
}
