package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
	"github.com/sakif/blog/internal/storage"
)

// =========================================================================
// IN-MEMORY REPOSITORY
// =========================================================================
//
// memRepo implements every repository interface over plain maps, so one
// value can back all services in a test. Set the *Err fields to simulate a
// failing database.

type memRepo struct {
	mu       sync.Mutex
	nextID   int
	users    map[string]*model.User
	profiles map[string]*model.Profile
	posts    map[string]*model.Post
	handouts []*model.Handout

	listErr          error
	updateAccountErr error
	createHandoutErr error
}

var (
	_ repository.PostRepository    = (*memRepo)(nil)
	_ repository.UserRepository    = (*memRepo)(nil)
	_ repository.ProfileRepository = (*memRepo)(nil)
	_ repository.HandoutRepository = (*memRepo)(nil)
)

func newMemRepo() *memRepo {
	return &memRepo{
		users:    make(map[string]*model.User),
		profiles: make(map[string]*model.Profile),
		posts:    make(map[string]*model.Post),
	}
}

func (m *memRepo) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// --- users ---

func (m *memRepo) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertUser(user)
}

func (m *memRepo) insertUser(user *model.User) error {
	for _, u := range m.users {
		if u.Username == user.Username {
			return apperror.Conflict("user", user.Username)
		}
	}
	user.ID = m.id("user")
	user.DateJoined = time.Now().UTC()
	user.UpdatedAt = user.DateJoined
	stored := *user
	m.users[user.ID] = &stored
	m.profiles[user.ID] = &model.Profile{UserID: user.ID, Image: model.DefaultProfileImage}
	return nil
}

func (m *memRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (m *memRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (m *memRepo) UsernameTaken(_ context.Context, username, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Upsert(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.GitHubID != nil && *u.GitHubID == *user.GitHubID {
			u.Email = user.Email
			*user = *u
			return nil
		}
	}
	return m.insertUser(user)
}

// --- profiles ---

func (m *memRepo) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	copied := *p
	return &copied, nil
}

func (m *memRepo) UpdateAccount(_ context.Context, user *model.User, profile *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateAccountErr != nil {
		return m.updateAccountErr
	}
	for _, u := range m.users {
		if u.Username == user.Username && u.ID != user.ID {
			return apperror.Conflict("user", user.Username)
		}
	}
	u := *user
	p := *profile
	m.users[user.ID] = &u
	m.profiles[user.ID] = &p
	return nil
}

// --- posts ---

func (m *memRepo) Create(_ context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post.ID = m.id("post")
	if post.DatePosted.IsZero() {
		post.DatePosted = time.Now().UTC()
	}
	stored := *post
	m.posts[post.ID] = &stored
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	copied := *p
	return &copied, nil
}

func (m *memRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}

	var all []model.Post
	for _, p := range m.posts {
		if opts.AuthorID == "" || p.AuthorID == opts.AuthorID {
			all = append(all, *p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].DatePosted.After(all[j].DatePosted) })

	if opts.Offset >= len(all) {
		return nil, nil
	}
	end := min(opts.Offset+opts.Limit, len(all))
	return all[opts.Offset:end], nil
}

func (m *memRepo) Count(_ context.Context, authorID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.posts {
		if authorID == "" || p.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) Update(_ context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[post.ID]; !ok {
		return apperror.NotFound("post", post.ID)
	}
	stored := *post
	m.posts[post.ID] = &stored
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(m.posts, id)
	return nil
}

// --- handouts ---

func (m *memRepo) CreateHandout(_ context.Context, h *model.Handout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createHandoutErr != nil {
		return m.createHandoutErr
	}
	h.ID = m.id("handout")
	h.UploadedAt = time.Now().UTC()
	stored := *h
	m.handouts = append(m.handouts, &stored)
	return nil
}

func (m *memRepo) GetHandout(_ context.Context, id string) (*model.Handout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.handouts {
		if h.ID == id {
			copied := *h
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("handout", id)
}

func (m *memRepo) ListHandouts(_ context.Context) ([]model.Handout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Handout, 0, len(m.handouts))
	for _, h := range m.handouts {
		out = append(out, *h)
	}
	return out, nil
}

// =========================================================================
// IN-MEMORY STORE
// =========================================================================

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

var _ storage.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf.Bytes()
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memStore) URL(_ context.Context, key string) (string, error) {
	return "/media/" + key, nil
}

func (s *memStore) keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPasswords() *auth.PasswordService {
	// Cost 4 is the bcrypt minimum, which keeps tests fast.
	return auth.NewPasswordServiceForTest(4)
}

func testTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// addUser stores a user with a default profile and returns it.
func addUser(t *testing.T, repo *memRepo, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com"}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

// addPost stores a post by author dated at.
func addPost(t *testing.T, repo *memRepo, author *model.User, title string, at time.Time) *model.Post {
	t.Helper()
	p := &model.Post{
		Title:      title,
		Content:    "content of " + title,
		AuthorID:   author.ID,
		Author:     author.Username,
		DatePosted: at,
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("Create(%s): %v", title, err)
	}
	return p
}
