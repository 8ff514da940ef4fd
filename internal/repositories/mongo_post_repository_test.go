package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/anonto42/minitwitter/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type staticLikeCounter map[string]int64

func (c staticLikeCounter) CountLikesByPostIDs(_ context.Context, postIDs []string) (map[string]int64, error) {
	counts := map[string]int64{}
	for _, id := range postIDs {
		if n, ok := c[id]; ok {
			counts[id] = n
		}
	}
	return counts, nil
}

func TestMongoPostRepository_ReadFeed(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("minitwitter_test_" + uuid.NewString()[:8])
	t.Cleanup(func() { _ = db.Drop(context.Background()) })

	likes := staticLikeCounter{"p1": 2, "p3": 1}
	repo := NewMongoPostRepository(db, likes)
	require.NoError(t, repo.EnsureIndexes(ctx))

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	posts := []models.Post{
		{ID: "p1", AuthorID: "b", Text: "Hello", Tags: []string{"go"}, CreatedAt: base},
		{ID: "p2", AuthorID: "b", Text: "two", CreatedAt: base.Add(time.Minute)},
		{ID: "p3", AuthorID: "b", Text: "three", Tags: []string{"go"}, CreatedAt: base.Add(time.Minute)},
		{ID: "p4", AuthorID: "b", Text: "hello again", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "x1", AuthorID: "z", Text: "hidden", CreatedAt: base},
	}
	for i := range posts {
		require.NoError(t, repo.CreatePost(ctx, &posts[i]))
	}
	authors := []string{"b"}
	ids := func(page []models.AnnotatedPost) []string {
		out := make([]string, len(page))
		for i, p := range page {
			out[i] = p.ID
		}
		return out
	}

	page, total, err := repo.ReadFeed(ctx, authors, models.PostPage{OrderBy: "created_at", Desc: true, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, []string{"p4", "p3", "p2", "p1"}, ids(page))
	assert.EqualValues(t, 2, page[3].LikeCount)

	page, _, err = repo.ReadFeed(ctx, authors, models.PostPage{OrderBy: "like_count", Desc: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p3"}, ids(page))
	assert.Equal(t, []string{"go"}, page[0].Tags)

	page, _, err = repo.ReadFeed(ctx, authors, models.PostPage{OrderBy: "like_count", Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, ids(page))

	page, total, err = repo.ReadFeed(ctx, authors, models.PostPage{PostFilter: models.PostFilter{Search: "HELLO"}, OrderBy: "created_at", Desc: true, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"p4", "p1"}, ids(page))

	page, total, err = repo.ReadFeed(ctx, authors, models.PostPage{OrderBy: "created_at", Limit: 10, Offset: 4})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Empty(t, page)
}
