package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

// fakeBackend is an in-process school backend speaking the {"data": ...} envelope.
type fakeBackend struct {
	t *testing.T

	mu            sync.Mutex
	schoolID      int64
	createdID     int64
	classBody     string // overrides the POST /classes response when set
	failTeacher   int64  // POST /schedules for this teacher answers 500
	failSubjects  bool
	unauthorized  bool
	class         *models.Class
	schedules     []models.Schedule
	classPosts    []models.ClassPayload
	schedulePosts []models.SchedulePayload
	classPuts     []models.ClassUpdatePayload
	calls         map[string]int
	tokens        []string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *upstream.Client) {
	t.Helper()
	b := &fakeBackend{t: t, schoolID: 3, createdID: 77, calls: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, upstream.New(srv.URL, 5*time.Second)
}

func (b *fakeBackend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	route := r.Method + " " + r.URL.Path
	switch {
	case strings.HasPrefix(r.URL.Path, "/subjects/school/"):
		route = r.Method + " /subjects/school/{id}"
	case strings.HasPrefix(r.URL.Path, "/teachers/school/"):
		route = r.Method + " /teachers/school/{id}"
	case strings.HasPrefix(r.URL.Path, "/classes/"):
		route = r.Method + " /classes/{id}"
	}
	b.calls[route]++
	b.tokens = append(b.tokens, r.Header.Get("Authorization"))

	if b.unauthorized {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch route {
	case "GET /principals/me":
		writeData(w, models.Principal{ID: 1, UserID: 40, SchoolID: b.schoolID})
	case "GET /subjects/school/{id}":
		if b.failSubjects {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeData(w, []models.Subject{{ID: 5, Name: "Mathematics"}, {ID: 6, Name: "Biology"}})
	case "GET /teachers/school/{id}":
		writeData(w, []models.Teacher{{ID: 2, UserID: 11, FirstName: "Siti", LastName: "Rahma"}})
	case "POST /classes":
		var payload models.ClassPayload
		b.decode(r, &payload)
		b.classPosts = append(b.classPosts, payload)
		if b.classBody != "" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(b.classBody))
			return
		}
		writeData(w, models.Class{ID: b.createdID, SchoolID: payload.SchoolID, Name: payload.Name})
	case "PUT /classes/{id}":
		var payload models.ClassUpdatePayload
		b.decode(r, &payload)
		b.classPuts = append(b.classPuts, payload)
		writeData(w, models.Class{ID: b.createdID, SchoolID: payload.SchoolID, Name: payload.Name})
	case "GET /classes/{id}":
		if b.class == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"class not found"}}`))
			return
		}
		writeData(w, b.class)
	case "POST /schedules":
		var payload models.SchedulePayload
		b.decode(r, &payload)
		b.schedulePosts = append(b.schedulePosts, payload)
		if b.failTeacher != 0 && payload.TeacherID == b.failTeacher {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL","message":"teacher unavailable"}}`))
			return
		}
		writeData(w, models.Schedule{ID: int64(100 + len(b.schedulePosts)), ClassID: payload.ClassID, TeacherID: payload.TeacherID})
	case "GET /schedules":
		classID, _ := strconv.ParseInt(r.URL.Query().Get("class_id"), 10, 64)
		out := make([]models.Schedule, 0)
		for _, s := range b.schedules {
			if s.ClassID == classID {
				out = append(out, s)
			}
		}
		writeData(w, out)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *fakeBackend) decode(r *http.Request, dst interface{}) {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		b.t.Errorf("decode %s %s: %v", r.Method, r.URL.Path, err)
	}
}

func writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

// memoryCache is an in-memory CacheRepository round-tripping through JSON like redis does.
type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.items, key)
	}
	return nil
}
