/*
Package feed keeps the client's view of the post feed.

Cache is the single source of truth for posts, keyed by post id. Likes and comments are
applied optimistically under the cache lock, then either replaced by the post the server
returns or rolled back to the previous entry when the call fails. Posts touched by a
mutation are persisted under the postUpdates key so the last known state survives a
restart until the next refresh replaces it.
*/
package feed

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"

	"gymbro/internal/app/api"
	"gymbro/internal/app/session"
	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/logx"
)

// maxPersisted bounds the number of mutated posts kept in the store.
const maxPersisted = 200

// Backend is the part of the REST client the cache needs.
type Backend interface {
	ListPosts(ctx context.Context, page, limit int) (*api.PostPage, error)
	CreatePost(ctx context.Context, content string, image io.Reader, imageName string) (*api.Post, error)
	LikePost(ctx context.Context, postID string) (*api.Post, error)
	UnlikePost(ctx context.Context, postID string) (*api.Post, error)
	AddComment(ctx context.Context, postID, text string) (*api.Post, error)
}

type entry struct {
	post api.Post

	// version increases on every local change; rollbacks only apply to the version
	// they were taken against.
	version uint64
	touched bool
}

// Cache holds posts by id.
type Cache struct {
	backend Backend
	store   session.Store
	viewer  func() string

	mu            sync.RWMutex
	entries       map[string]*entry
	shouldRefresh bool
	hasMore       bool
}

// NewCache builds an empty cache. viewer returns the current user id and is used to
// resolve whether the viewer liked a post.
func NewCache(backend Backend, store session.Store, viewer func() string) *Cache {
	if viewer == nil {
		viewer = func() string { return "" }
	}
	return &Cache{
		backend: backend,
		store:   store,
		viewer:  viewer,
		entries: make(map[string]*entry),
	}
}

// Load restores the persisted post view. A missing or unreadable value leaves the
// cache empty.
func (c *Cache) Load(ctx context.Context) error {
	raw, ok, err := c.store.Get(ctx, session.KeyPostUpdates)
	if err != nil {
		return err
	}
	if !ok || raw == "" {
		return nil
	}

	var persisted map[string]api.Post
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		logx.Warn("Persisted post view is unreadable, ignoring it", "error", err.Error())
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range persisted {
		if p.ID == "" {
			p.ID = id
		}
		c.entries[id] = &entry{post: p, touched: true}
	}
	return nil
}

// Refresh fetches a page of posts and upserts them. Server posts replace cached
// entries. It clears the refresh flag.
func (c *Cache) Refresh(ctx context.Context, page, limit int) ([]api.Post, error) {
	result, err := c.backend.ListPosts(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	viewer := c.viewer()
	posts := make([]api.Post, 0, len(result.Posts))

	c.mu.Lock()
	for _, p := range result.Posts {
		if p.ID == "" {
			continue
		}
		p.Normalize(viewer)
		c.upsertLocked(p, false)
		posts = append(posts, clonePost(p))
	}
	c.shouldRefresh = false
	c.hasMore = result.HasMore || (limit > 0 && len(result.Posts) >= limit)
	c.mu.Unlock()

	c.persist(ctx)
	return posts, nil
}

// Posts returns every cached post, newest first.
func (c *Cache) Posts() []api.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()

	posts := make([]api.Post, 0, len(c.entries))
	for _, e := range c.entries {
		posts = append(posts, clonePost(e.post))
	}

	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	return posts
}

// Get returns the cached post with id.
func (c *Cache) Get(id string) (api.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return api.Post{}, false
	}
	return clonePost(e.post), true
}

// ShouldRefresh reports whether a post was created since the last refresh.
func (c *Cache) ShouldRefresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shouldRefresh
}

// HasMore reports whether the last refresh suggested further pages.
func (c *Cache) HasMore() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasMore
}

// ToggleLike flips the viewer's like on postID. The cached post changes immediately
// and is reconciled with the server's answer.
func (c *Cache) ToggleLike(ctx context.Context, postID string) (api.Post, error) {
	viewer := c.viewer()

	c.mu.Lock()
	e, ok := c.entries[postID]
	if !ok {
		c.mu.Unlock()
		return api.Post{}, errs.NewError(errs.ErrNotFound)
	}
	previous := clonePost(e.post)
	liking := !e.post.Liked

	next := clonePost(e.post)
	next.Liked = liking
	if liking {
		next.LikesCount++
		if viewer != "" {
			next.Likes = append(next.Likes, viewer)
		}
	} else {
		if next.LikesCount > 0 {
			next.LikesCount--
		}
		next.Likes = without(next.Likes, viewer)
	}
	version := c.upsertLocked(next, true)
	c.mu.Unlock()

	var (
		confirmed *api.Post
		err       error
	)
	if liking {
		confirmed, err = c.backend.LikePost(ctx, postID)
	} else {
		confirmed, err = c.backend.UnlikePost(ctx, postID)
	}

	return c.reconcile(ctx, postID, version, previous, confirmed, err, func(p *api.Post) {
		// A post without a likes list says nothing about the viewer; keep the optimistic flag.
		if liking && !p.Liked && len(p.Likes) == 0 {
			p.Liked = true
		}
	})
}

// AddComment comments on postID. The comment count increases immediately and is
// reconciled with the server's answer.
func (c *Cache) AddComment(ctx context.Context, postID, text string) (api.Post, error) {
	if strings.TrimSpace(text) == "" {
		return api.Post{}, errs.NewError(errs.ErrValidation, "comment text is required")
	}

	c.mu.Lock()
	e, ok := c.entries[postID]
	if !ok {
		c.mu.Unlock()
		return api.Post{}, errs.NewError(errs.ErrNotFound)
	}
	previous := clonePost(e.post)
	next := clonePost(e.post)
	next.CommentsCount++
	version := c.upsertLocked(next, true)
	c.mu.Unlock()

	confirmed, err := c.backend.AddComment(ctx, postID, text)
	return c.reconcile(ctx, postID, version, previous, confirmed, err, nil)
}

// CreatePost publishes a post, inserts it and marks the feed for refresh.
func (c *Cache) CreatePost(ctx context.Context, content string, image io.Reader, imageName string) (api.Post, error) {
	if strings.TrimSpace(content) == "" && image == nil {
		return api.Post{}, errs.NewError(errs.ErrValidation, "a post needs text or an image")
	}

	created, err := c.backend.CreatePost(ctx, content, image, imageName)
	if err != nil {
		return api.Post{}, err
	}

	created.Normalize(c.viewer())

	c.mu.Lock()
	if created.ID != "" {
		c.upsertLocked(*created, false)
	}
	c.shouldRefresh = true
	c.mu.Unlock()

	return clonePost(*created), nil
}

// reconcile settles an optimistic change. On success the server's post replaces the
// entry; on failure the previous entry is restored unless a newer local change landed
// in the meantime.
func (c *Cache) reconcile(ctx context.Context, postID string, version uint64, previous api.Post, confirmed *api.Post, callErr error, adjust func(*api.Post)) (api.Post, error) {
	if callErr != nil {
		c.mu.Lock()
		if e, ok := c.entries[postID]; ok && e.version == version {
			e.post = previous
			e.version++
		}
		c.mu.Unlock()

		logx.Warn("Post mutation failed, rolled back", "post_id", postID, "error", callErr.Error())
		return previous, callErr
	}

	c.mu.Lock()
	var result api.Post
	e, ok := c.entries[postID]
	switch {
	case confirmed == nil || confirmed.ID == "":
		// No usable body: keep the optimistic entry.
		if ok {
			result = clonePost(e.post)
		}
	case ok && e.version != version:
		// A newer optimistic change is in flight; it will reconcile itself.
		result = clonePost(e.post)
	default:
		p := clonePost(*confirmed)
		p.Normalize(c.viewer())
		if adjust != nil {
			adjust(&p)
		}
		c.upsertLocked(p, true)
		result = clonePost(p)
	}
	c.mu.Unlock()

	c.persist(ctx)
	return result, nil
}

// upsertLocked stores p and returns the entry's new version. c.mu must be held.
func (c *Cache) upsertLocked(p api.Post, touched bool) uint64 {
	e, ok := c.entries[p.ID]
	if !ok {
		e = &entry{}
		c.entries[p.ID] = e
	}
	e.post = p
	e.version++
	e.touched = touched
	return e.version
}

// persist writes the mutated posts under postUpdates.
func (c *Cache) persist(ctx context.Context) {
	c.mu.RLock()
	view := make(map[string]api.Post)
	for id, e := range c.entries {
		if e.touched {
			view[id] = e.post
		}
	}
	c.mu.RUnlock()

	if len(view) > maxPersisted {
		view = newest(view, maxPersisted)
	}

	data, err := json.Marshal(view)
	if err != nil {
		logx.Error(err, "Failed to encode post view")
		return
	}
	if err := c.store.Set(ctx, session.KeyPostUpdates, string(data)); err != nil {
		logx.Error(err, "Failed to persist post view")
	}
}

func newest(view map[string]api.Post, n int) map[string]api.Post {
	posts := make([]api.Post, 0, len(view))
	for _, p := range view {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })

	out := make(map[string]api.Post, n)
	for _, p := range posts[:n] {
		out[p.ID] = p
	}
	return out
}

func clonePost(p api.Post) api.Post {
	if p.Likes != nil {
		p.Likes = append([]string(nil), p.Likes...)
	}
	if p.Comments != nil {
		p.Comments = append([]api.Comment(nil), p.Comments...)
	}
	return p
}

func without(ids []string, id string) []string {
	if id == "" {
		return ids
	}
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
