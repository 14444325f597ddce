package feed

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"gymbro/internal/app/api"
	"gymbro/internal/app/session"
	"gymbro/internal/pkg/errs"
)

// fakeBackend answers like the REST API. Its mutation calls block on gate when set so
// tests can observe the optimistic state.
type fakeBackend struct {
	posts   []api.Post
	failErr error
	gate    chan struct{}

	likeCalls    int
	unlikeCalls  int
	commentCalls int
}

func (f *fakeBackend) wait() {
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeBackend) ListPosts(context.Context, int, int) (*api.PostPage, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &api.PostPage{Posts: append([]api.Post(nil), f.posts...)}, nil
}

func (f *fakeBackend) CreatePost(_ context.Context, content string, _ io.Reader, _ string) (*api.Post, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &api.Post{ID: "new", Content: content, CreatedAt: time.Now()}, nil
}

func (f *fakeBackend) LikePost(_ context.Context, id string) (*api.Post, error) {
	f.likeCalls++
	f.wait()
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &api.Post{ID: id, Likes: []string{"other", "me"}, LikesCount: 2, CommentsCount: 1}, nil
}

func (f *fakeBackend) UnlikePost(_ context.Context, id string) (*api.Post, error) {
	f.unlikeCalls++
	f.wait()
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &api.Post{ID: id, Likes: []string{"other"}, LikesCount: 1, CommentsCount: 1}, nil
}

func (f *fakeBackend) AddComment(_ context.Context, id, text string) (*api.Post, error) {
	f.commentCalls++
	f.wait()
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &api.Post{ID: id, Likes: []string{"other"}, LikesCount: 1, CommentsCount: 5}, nil
}

func seeded(t *testing.T) (*Cache, *fakeBackend, *session.MemoryStore) {
	t.Helper()
	backend := &fakeBackend{posts: []api.Post{
		{ID: "p1", Content: "squat", Likes: []string{"other"}, CommentsCount: 1, CreatedAt: time.Unix(100, 0)},
		{ID: "p2", Content: "bench", CreatedAt: time.Unix(200, 0)},
	}}
	store := session.NewMemoryStore()
	c := NewCache(backend, store, func() string { return "me" })

	if _, err := c.Refresh(context.Background(), 1, 20); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	return c, backend, store
}

func TestRefresh_NewestFirstAndNormalized(t *testing.T) {
	c, _, _ := seeded(t)

	posts := c.Posts()
	if len(posts) != 2 || posts[0].ID != "p2" || posts[1].ID != "p1" {
		t.Fatalf("order = %+v", posts)
	}
	if posts[1].LikesCount != 1 || posts[1].Liked {
		t.Errorf("p1 = %+v", posts[1])
	}
}

func TestToggleLike_OptimisticThenConfirmed(t *testing.T) {
	c, backend, store := seeded(t)
	backend.gate = make(chan struct{})

	done := make(chan api.Post)
	go func() {
		p, err := c.ToggleLike(context.Background(), "p1")
		if err != nil {
			t.Errorf("ToggleLike() error: %v", err)
		}
		done <- p
	}()

	waitFor(t, func() bool {
		p, _ := c.Get("p1")
		return p.Liked
	})
	if p, _ := c.Get("p1"); p.LikesCount != 2 {
		t.Errorf("optimistic count = %d, want 2", p.LikesCount)
	}

	close(backend.gate)
	p := <-done
	if !p.Liked || p.LikesCount != 2 {
		t.Errorf("confirmed post = %+v", p)
	}

	raw, ok, _ := store.Get(context.Background(), session.KeyPostUpdates)
	if !ok {
		t.Fatal("post view not persisted")
	}
	var view map[string]api.Post
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		t.Fatalf("persisted view: %v", err)
	}
	if !view["p1"].Liked {
		t.Errorf("persisted p1 = %+v", view["p1"])
	}
	if _, ok := view["p2"]; ok {
		t.Error("untouched post persisted")
	}
}

func TestToggleLike_RollsBackOnFailure(t *testing.T) {
	c, backend, _ := seeded(t)
	backend.failErr = errs.NewError(errs.ErrServer)

	before, _ := c.Get("p1")
	if _, err := c.ToggleLike(context.Background(), "p1"); err == nil {
		t.Fatal("expected error")
	}

	after, _ := c.Get("p1")
	if after.Liked != before.Liked || after.LikesCount != before.LikesCount || len(after.Likes) != len(before.Likes) {
		t.Errorf("after rollback = %+v, want %+v", after, before)
	}
}

func TestToggleLike_UnlikeAfterLike(t *testing.T) {
	c, backend, _ := seeded(t)
	ctx := context.Background()

	if _, err := c.ToggleLike(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	p, err := c.ToggleLike(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Liked || p.LikesCount != 1 {
		t.Errorf("post = %+v", p)
	}
	if backend.likeCalls != 1 || backend.unlikeCalls != 1 {
		t.Errorf("calls like=%d unlike=%d", backend.likeCalls, backend.unlikeCalls)
	}
}

func TestToggleLike_UnknownPost(t *testing.T) {
	c, backend, _ := seeded(t)

	if _, err := c.ToggleLike(context.Background(), "missing"); errs.CodeOf(err) != errs.ErrNotFound {
		t.Errorf("err = %v", err)
	}
	if backend.likeCalls != 0 {
		t.Error("unknown post reached the backend")
	}
}

func TestAddComment_OptimisticAndRollback(t *testing.T) {
	c, backend, _ := seeded(t)
	ctx := context.Background()

	p, err := c.AddComment(ctx, "p1", "nice depth")
	if err != nil {
		t.Fatal(err)
	}
	if p.CommentsCount != 5 {
		t.Errorf("server count not applied: %+v", p)
	}

	backend.failErr = errs.NewError(errs.ErrServer)
	if _, err := c.AddComment(ctx, "p1", "again"); err == nil {
		t.Fatal("expected error")
	}
	if got, _ := c.Get("p1"); got.CommentsCount != 5 {
		t.Errorf("count after rollback = %d, want 5", got.CommentsCount)
	}

	if _, err := c.AddComment(ctx, "p1", "   "); errs.CodeOf(err) != errs.ErrValidation {
		t.Errorf("err = %v, want validation", err)
	}
}

func TestCreatePost_SetsRefreshFlag(t *testing.T) {
	c, _, _ := seeded(t)
	ctx := context.Background()

	if c.ShouldRefresh() {
		t.Fatal("flag set before any post was created")
	}
	if _, err := c.CreatePost(ctx, "deadlift PR", nil, ""); err != nil {
		t.Fatal(err)
	}
	if !c.ShouldRefresh() {
		t.Error("flag not set after CreatePost")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("created post not cached")
	}

	if _, err := c.Refresh(ctx, 1, 20); err != nil {
		t.Fatal(err)
	}
	if c.ShouldRefresh() {
		t.Error("flag not cleared by Refresh")
	}
}

func TestLoad_RestoresPersistedView(t *testing.T) {
	c, _, store := seeded(t)
	ctx := context.Background()
	if _, err := c.ToggleLike(ctx, "p1"); err != nil {
		t.Fatal(err)
	}

	restored := NewCache(&fakeBackend{}, store, func() string { return "me" })
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	p, ok := restored.Get("p1")
	if !ok || !p.Liked {
		t.Errorf("restored p1 = %+v, ok=%v", p, ok)
	}
}

func TestLoad_IgnoresCorruptValue(t *testing.T) {
	store := session.NewMemoryStore()
	_ = store.Set(context.Background(), session.KeyPostUpdates, "{oops")

	c := NewCache(&fakeBackend{}, store, nil)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(c.Posts()) != 0 {
		t.Error("corrupt value produced posts")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
