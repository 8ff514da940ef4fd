package repositories

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"time"

	"github.com/anonto42/minitwitter/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type postDocument struct {
	ID        string    `bson:"_id"`
	AuthorID  string    `bson:"author_id"`
	Text      string    `bson:"text"`
	Image     *string   `bson:"image,omitempty"`
	Tags      []string  `bson:"tags"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toPostDocument(p *models.Post) postDocument {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return postDocument{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Text:      p.Text,
		Image:     p.Image,
		Tags:      tags,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (d postDocument) toModel() models.Post {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.Post{
		ID:        d.ID,
		AuthorID:  d.AuthorID,
		Text:      d.Text,
		Image:     d.Image,
		Tags:      tags,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// LikeCounter reports like counts for posts kept outside the like store.
type LikeCounter interface {
	CountLikesByPostIDs(ctx context.Context, postIDs []string) (map[string]int64, error)
}

// MongoPostRepository implements PostRepository on a MongoDB collection,
// storing tags as an array on the post document. Likes stay in the
// relational store and are counted through likes.
type MongoPostRepository struct {
	collection *mongo.Collection
	likes      LikeCounter
}

func NewMongoPostRepository(db *mongo.Database, likes LikeCounter) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts"), likes: likes}
}

// EnsureIndexes creates the indexes the feed query relies on.
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
	})
	return err
}

func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	_, err := r.collection.InsertOne(ctx, toPostDocument(post))
	return err
}

func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	var doc postDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	post := doc.toModel()
	return &post, nil
}

func (r *MongoPostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": post.ID}, bson.M{"$set": bson.M{
		"text":       post.Text,
		"image":      post.Image,
		"tags":       tags,
		"updated_at": post.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *MongoPostRepository) ListPostsByAuthors(ctx context.Context, authorIDs []string, filter models.PostFilter) ([]models.Post, error) {
	posts := []models.Post{}
	if len(authorIDs) == 0 {
		return posts, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	docs, err := r.find(ctx, postQuery(authorIDs, filter), opts)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		posts = append(posts, doc.toModel())
	}
	return posts, nil
}

// ReadFeed pages by created_at inside MongoDB. Ordering by like_count reads
// only ids and timestamps of the matching posts, counts their likes in
// batches, and then loads the documents of the requested page.
func (r *MongoPostRepository) ReadFeed(ctx context.Context, authorIDs []string, page models.PostPage) ([]models.AnnotatedPost, int64, error) {
	results := []models.AnnotatedPost{}
	if len(authorIDs) == 0 {
		return results, 0, nil
	}
	query := postQuery(authorIDs, page.PostFilter)
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 || int64(page.Offset) >= total {
		return results, total, nil
	}

	if page.OrderBy == "like_count" {
		results, err = r.pageByLikes(ctx, query, page)
	} else {
		results, err = r.pageByCreated(ctx, query, page)
	}
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *MongoPostRepository) pageByCreated(ctx context.Context, query bson.M, page models.PostPage) ([]models.AnnotatedPost, error) {
	dir := 1
	if page.Desc {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	docs, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	counts, err := r.likes.CountLikesByPostIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	results := make([]models.AnnotatedPost, len(docs))
	for i, doc := range docs {
		results[i] = models.AnnotatedPost{Post: doc.toModel(), LikeCount: counts[doc.ID]}
	}
	return results, nil
}

func (r *MongoPostRepository) pageByLikes(ctx context.Context, query bson.M, page models.PostPage) ([]models.AnnotatedPost, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1, "created_at": 1})
	keys, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}
	counts, err := r.likes.CountLikesByPostIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if ca, cb := counts[a.ID], counts[b.ID]; ca != cb {
			if page.Desc {
				return ca > cb
			}
			return ca < cb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	end := min(page.Offset+page.Limit, len(keys))
	if page.Offset >= end {
		return []models.AnnotatedPost{}, nil
	}
	keys = keys[page.Offset:end]

	pageIDs := make([]string, len(keys))
	for i, k := range keys {
		pageIDs[i] = k.ID
	}
	docs, err := r.find(ctx, bson.M{"_id": bson.M{"$in": pageIDs}}, options.Find())
	if err != nil {
		return nil, err
	}
	byID := make(map[string]postDocument, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	results := make([]models.AnnotatedPost, 0, len(keys))
	for _, k := range keys {
		doc, ok := byID[k.ID]
		if !ok {
			// deleted between the two reads
			continue
		}
		results = append(results, models.AnnotatedPost{Post: doc.toModel(), LikeCount: counts[k.ID]})
	}
	return results, nil
}

func postQuery(authorIDs []string, filter models.PostFilter) bson.M {
	query := bson.M{"author_id": bson.M{"$in": authorIDs}}
	if filter.Tag != "" {
		query["tags"] = filter.Tag
	}
	if filter.Search != "" {
		query["text"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
	}
	return query
}

func (r *MongoPostRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]postDocument, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []postDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
