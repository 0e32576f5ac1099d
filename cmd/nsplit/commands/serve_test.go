package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nsplit-app/nsplit/audit"
	"github.com/nsplit-app/nsplit/middleware"
	"github.com/nsplit-app/nsplit/user"
)

type fakeUserRepo struct {
	users map[uuid.UUID]*user.User
}

func newFakeUserRepo(users ...*user.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[uuid.UUID]*user.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Register(ctx context.Context, name, email, password string) (*user.User, error) {
	u := &user.User{ID: uuid.New(), Name: name, Email: email, CreatedAt: time.Now().UTC()}
	r.users[u.ID] = u
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return r.users[id], nil
}

func (r *fakeUserRepo) VerifyPassword(hashedPassword, password string) error {
	return nil
}

func (r *fakeUserRepo) UpdateName(ctx context.Context, userID uuid.UUID, name string) error {
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	u.Name = name
	return nil
}

type discardSink struct{}

func (discardSink) Save(ctx context.Context, e audit.Entry) error { return nil }

func authenticatedRequest(method, path string, userID uuid.UUID, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func TestProfileHandlerReturnsUser(t *testing.T) {
	account := &user.User{
		ID:           uuid.New(),
		Name:         "Alex",
		Email:        "alex@example.com",
		PasswordHash: "secret-hash",
		CreatedAt:    time.Now().UTC(),
	}
	handler := profileHandler(newFakeUserRepo(account))

	w := httptest.NewRecorder()
	handler(w, authenticatedRequest(http.MethodGet, "/user/profile", account.ID, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var got user.User
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding profile: %v", err)
	}
	if got.ID != account.ID || got.Name != "Alex" || got.Email != "alex@example.com" {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if strings.Contains(w.Body.String(), "secret-hash") {
		t.Fatalf("password hash leaked in profile response")
	}
}

func TestProfileHandlerUnknownUser(t *testing.T) {
	handler := profileHandler(newFakeUserRepo())

	w := httptest.NewRecorder()
	handler(w, authenticatedRequest(http.MethodGet, "/user/profile", uuid.New(), nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUpdateNameHandler(t *testing.T) {
	account := &user.User{ID: uuid.New(), Name: "Alex", Email: "alex@example.com"}
	repo := newFakeUserRepo(account)
	worker := audit.NewWorker(discardSink{}, 4)
	handler := updateNameHandler(repo, worker)

	body, _ := json.Marshal(map[string]string{"name": "Alexandra"})
	w := httptest.NewRecorder()
	handler(w, authenticatedRequest(http.MethodPost, "/user/profile/update-name", account.ID, body))

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body)
	}
	if repo.users[account.ID].Name != "Alexandra" {
		t.Fatalf("expected name to be updated, got %q", repo.users[account.ID].Name)
	}
}

func TestUpdateNameHandlerRejectsBlankName(t *testing.T) {
	account := &user.User{ID: uuid.New(), Name: "Alex", Email: "alex@example.com"}
	repo := newFakeUserRepo(account)
	worker := audit.NewWorker(discardSink{}, 4)
	handler := updateNameHandler(repo, worker)

	body, _ := json.Marshal(map[string]string{"name": ""})
	w := httptest.NewRecorder()
	handler(w, authenticatedRequest(http.MethodPost, "/user/profile/update-name", account.ID, body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if repo.users[account.ID].Name != "Alex" {
		t.Fatalf("name changed on rejected request: %q", repo.users[account.ID].Name)
	}
}
