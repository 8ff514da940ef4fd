package repositories

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/minitwitter/backend/internal/models"
)

// The Memory* repositories back STORE_DRIVER=memory and the test suites.
// Each one owns its own mutex, so the stores lock independently; a write that
// must be unique happens entirely under that lock.

// MemoryUserRepository implements UserRepository in process memory
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]models.User
	byEmail map[string]string
	byName  map[string]string
	byUID   map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]models.User),
		byEmail: make(map[string]string),
		byName:  make(map[string]string),
		byUID:   make(map[string]string),
	}
}

func (r *MemoryUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := r.byID[user.ID]; ok {
		return ErrDuplicateUser
	}
	if _, ok := r.byEmail[email]; ok {
		return ErrDuplicateUser
	}
	if _, ok := r.byName[user.Username]; ok {
		return ErrDuplicateUser
	}
	if user.FirebaseUID != nil {
		if _, ok := r.byUID[*user.FirebaseUID]; ok {
			return ErrDuplicateUser
		}
		r.byUID[*user.FirebaseUID] = user.ID
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.byID[user.ID] = *user
	r.byEmail[email] = user.ID
	r.byName[user.Username] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	user := r.byID[id]
	return &user, nil
}

func (r *MemoryUserRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := r.byID[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *MemoryUserRepository) UserExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byID[id]
	return ok, nil
}

func (r *MemoryUserRepository) GetUserByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUID[uid]
	if !ok {
		return nil, ErrUserNotFound
	}
	user := r.byID[id]
	return &user, nil
}

func (r *MemoryUserRepository) SetFirebaseUID(ctx context.Context, id, uid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	if owner, taken := r.byUID[uid]; taken && owner != id {
		return ErrDuplicateUser
	}
	if user.FirebaseUID != nil {
		delete(r.byUID, *user.FirebaseUID)
	}
	user.FirebaseUID = &uid
	user.UpdatedAt = time.Now().UTC()
	r.byID[id] = user
	r.byUID[uid] = id
	return nil
}

type edgeKey struct {
	from string
	to   string
}

// MemoryFollowRepository implements FollowRepository with an edge map plus
// two adjacency indices, one per direction.
type MemoryFollowRepository struct {
	mu         sync.RWMutex
	edges      map[edgeKey]models.Follow
	byFollower map[string]map[string]struct{}
	byFollowed map[string]map[string]struct{}
}

func NewMemoryFollowRepository() *MemoryFollowRepository {
	return &MemoryFollowRepository{
		edges:      make(map[edgeKey]models.Follow),
		byFollower: make(map[string]map[string]struct{}),
		byFollowed: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryFollowRepository) CreateFollow(ctx context.Context, follow *models.Follow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if follow.FollowerID == follow.FollowedID {
		return ErrSelfReference
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := edgeKey{from: follow.FollowerID, to: follow.FollowedID}
	if _, ok := r.edges[key]; ok {
		return ErrAlreadyExists
	}
	if follow.CreatedAt.IsZero() {
		follow.CreatedAt = time.Now().UTC()
	}
	r.edges[key] = *follow
	addToIndex(r.byFollower, follow.FollowerID, follow.FollowedID)
	addToIndex(r.byFollowed, follow.FollowedID, follow.FollowerID)
	return nil
}

func (r *MemoryFollowRepository) DeleteFollow(ctx context.Context, followerID, followedID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := edgeKey{from: followerID, to: followedID}
	if _, ok := r.edges[key]; !ok {
		return ErrFollowNotFound
	}
	delete(r.edges, key)
	removeFromIndex(r.byFollower, followerID, followedID)
	removeFromIndex(r.byFollowed, followedID, followerID)
	return nil
}

func (r *MemoryFollowRepository) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.edges[edgeKey{from: followerID, to: followedID}]
	return ok, nil
}

func (r *MemoryFollowRepository) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.newestFirst(r.byFollowed[userID], func(other string) edgeKey {
		return edgeKey{from: other, to: userID}
	}), nil
}

func (r *MemoryFollowRepository) GetFollowingIDs(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.newestFirst(r.byFollower[userID], func(other string) edgeKey {
		return edgeKey{from: userID, to: other}
	}), nil
}

func (r *MemoryFollowRepository) CountFollowers(ctx context.Context, userIDs []string) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64, len(userIDs))
	for _, id := range userIDs {
		if n := len(r.byFollowed[id]); n > 0 {
			counts[id] = int64(n)
		}
	}
	return counts, nil
}

func (r *MemoryFollowRepository) CountFollowing(ctx context.Context, userIDs []string) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64, len(userIDs))
	for _, id := range userIDs {
		if n := len(r.byFollower[id]); n > 0 {
			counts[id] = int64(n)
		}
	}
	return counts, nil
}

// newestFirst must be called with r.mu held.
func (r *MemoryFollowRepository) newestFirst(set map[string]struct{}, key func(string) edgeKey) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := r.edges[key(ids[i])].CreatedAt, r.edges[key(ids[j])].CreatedAt
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return ids[i] > ids[j]
	})
	return ids
}

func addToIndex(index map[string]map[string]struct{}, key, member string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[member] = struct{}{}
}

func removeFromIndex(index map[string]map[string]struct{}, key, member string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, member)
	if len(set) == 0 {
		delete(index, key)
	}
}

// MemoryLikeRepository implements LikeRepository in process memory
type MemoryLikeRepository struct {
	mu     sync.RWMutex
	edges  map[edgeKey]models.Like
	byPost map[string]map[string]struct{}
}

func NewMemoryLikeRepository() *MemoryLikeRepository {
	return &MemoryLikeRepository{
		edges:  make(map[edgeKey]models.Like),
		byPost: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryLikeRepository) CreateLike(ctx context.Context, like *models.Like) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := edgeKey{from: like.UserID, to: like.PostID}
	if _, ok := r.edges[key]; ok {
		return ErrAlreadyExists
	}
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now().UTC()
	}
	r.edges[key] = *like
	addToIndex(r.byPost, like.PostID, like.UserID)
	return nil
}

func (r *MemoryLikeRepository) DeleteLike(ctx context.Context, userID, postID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := edgeKey{from: userID, to: postID}
	if _, ok := r.edges[key]; !ok {
		return ErrLikeNotFound
	}
	delete(r.edges, key)
	removeFromIndex(r.byPost, postID, userID)
	return nil
}

func (r *MemoryLikeRepository) GetLikesByPostID(ctx context.Context, postID string) ([]models.Like, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	likes := make([]models.Like, 0, len(r.byPost[postID]))
	for userID := range r.byPost[postID] {
		likes = append(likes, r.edges[edgeKey{from: userID, to: postID}])
	}
	sort.Slice(likes, func(i, j int) bool {
		if !likes[i].CreatedAt.Equal(likes[j].CreatedAt) {
			return likes[i].CreatedAt.After(likes[j].CreatedAt)
		}
		return likes[i].ID > likes[j].ID
	})
	return likes, nil
}

func (r *MemoryLikeRepository) CountLikesByPostIDs(ctx context.Context, postIDs []string) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64, len(postIDs))
	for _, id := range postIDs {
		if n := len(r.byPost[id]); n > 0 {
			counts[id] = int64(n)
		}
	}
	return counts, nil
}

func (r *MemoryLikeRepository) DeleteLikesByPostID(ctx context.Context, postID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID := range r.byPost[postID] {
		delete(r.edges, edgeKey{from: userID, to: postID})
	}
	delete(r.byPost, postID)
	return nil
}

// MemoryPostRepository implements PostRepository in process memory
type MemoryPostRepository struct {
	mu    sync.RWMutex
	posts map[string]models.Post
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{posts: make(map[string]models.Post)}
}

func (r *MemoryPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.posts[post.ID] = clonePost(*post)
	return nil
}

func (r *MemoryPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	post = clonePost(post)
	return &post, nil
}

func (r *MemoryPostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.posts[post.ID]
	if !ok {
		return ErrPostNotFound
	}
	updated := clonePost(*post)
	updated.AuthorID = existing.AuthorID
	updated.CreatedAt = existing.CreatedAt
	r.posts[post.ID] = updated
	return nil
}

func (r *MemoryPostRepository) DeletePost(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *MemoryPostRepository) ListPostsByAuthors(ctx context.Context, authorIDs []string, filter models.PostFilter) ([]models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	authors := make(map[string]struct{}, len(authorIDs))
	for _, id := range authorIDs {
		authors[id] = struct{}{}
	}
	search := strings.ToLower(filter.Search)

	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := []models.Post{}
	for _, post := range r.posts {
		if _, ok := authors[post.AuthorID]; !ok {
			continue
		}
		if filter.Tag != "" && !slices.Contains(post.Tags, filter.Tag) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(post.Text), search) {
			continue
		}
		posts = append(posts, clonePost(post))
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	return posts, nil
}

func clonePost(p models.Post) models.Post {
	if p.Tags != nil {
		p.Tags = slices.Clone(p.Tags)
	} else {
		p.Tags = []string{}
	}
	if p.Image != nil {
		image := *p.Image
		p.Image = &image
	}
	return p
}

// MemoryNotificationRepository implements NotificationRepository in process memory
type MemoryNotificationRepository struct {
	mu            sync.RWMutex
	nextID        uint
	notifications []models.Notification
}

func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{}
}

func (r *MemoryNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	notification.ID = r.nextID
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	r.notifications = append(r.notifications, *notification)
	return nil
}

func (r *MemoryNotificationRepository) GetByRecipientID(ctx context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	mine := []models.Notification{}
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].RecipientID == recipientID {
			mine = append(mine, r.notifications[i])
		}
	}
	total := int64(len(mine))
	start := (page - 1) * limit
	if start >= len(mine) {
		return []models.Notification{}, total, nil
	}
	end := min(start+limit, len(mine))
	return mine[start:end], total, nil
}

func (r *MemoryNotificationRepository) GetUnreadCount(ctx context.Context, recipientID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *MemoryNotificationRepository) MarkAsRead(ctx context.Context, recipientID string, notificationID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notifications {
		if r.notifications[i].ID == notificationID && r.notifications[i].RecipientID == recipientID {
			r.notifications[i].IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notifications {
		if r.notifications[i].RecipientID == recipientID {
			r.notifications[i].IsRead = true
		}
	}
	return nil
}
