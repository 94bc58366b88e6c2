package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-class-console/internal/models"
	"github.com/noah-isme/sma-class-console/pkg/middleware/requestid"
)

type recordingObserver struct {
	mu        sync.Mutex
	endpoints []string
	statuses  []int
}

func (o *recordingObserver) ObserveUpstreamCall(endpoint string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endpoints = append(o.endpoints, endpoint)
	o.statuses = append(o.statuses, status)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func TestClientAttachesTokenAndRequestID(t *testing.T) {
	var gotAuth, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get(requestid.HeaderKey)
		assert.Equal(t, "/principals/me", r.URL.Path)
		writeData(w, http.StatusOK, map[string]interface{}{"id": 3, "user_id": 9, "school_id": 12})
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	client := New(srv.URL, time.Second, WithObserver(obs))
	ctx := requestid.WithValue(context.Background(), "req-1")

	principal, err := client.Me(ctx, NewSession("tok"))
	require.NoError(t, err)
	assert.Equal(t, int64(12), principal.SchoolID)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "req-1", gotReqID)
	assert.Equal(t, []string{"/principals/me"}, obs.endpoints)
	assert.Equal(t, []int{http.StatusOK}, obs.statuses)
}

func TestClientClearsSessionOnUnauthorized(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	session := NewSession("tok")
	expired := false
	session.OnExpire(func() { expired = true })

	_, err := client.ListSubjects(context.Background(), session, 12)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, session.Active())
	assert.True(t, expired)

	_, err = client.ListTeachers(context.Background(), session, 12)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, calls, "cleared session must not reach the backend")
}

func TestClientReportsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"DUPLICATE","message":"class exists"}}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	_, err := client.CreateClass(context.Background(), NewSession("tok"), models.ClassPayload{Name: "7A"})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
	assert.Equal(t, "DUPLICATE", statusErr.Code)
	assert.Equal(t, "class exists", statusErr.Message)
	assert.Equal(t, "/classes", statusErr.Endpoint)
}

func TestClientRejectsUndocumentedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"class":{"id":5}}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	_, err := client.CreateClass(context.Background(), NewSession("tok"), models.ClassPayload{Name: "7A"})
	require.ErrorIs(t, err, ErrDecode)
}

func TestClientSendsNullForEmptyOptionals(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeData(w, http.StatusCreated, map[string]interface{}{"id": 41})
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	start := "07:00:00"
	class, err := client.CreateClass(context.Background(), NewSession("tok"), models.ClassPayload{
		SchoolID: 12, Name: "Grade 7A", AcademicYear: "2025-2026", StartTime: &start,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(41), class.ID)

	assert.Contains(t, body, "start_date")
	assert.Nil(t, body["start_date"])
	assert.Nil(t, body["end_time"])
	assert.Equal(t, "07:00:00", body["start_time"])
}

func TestListSchedulesQueriesByClass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/schedules", r.URL.Path)
		assert.Equal(t, "41", r.URL.Query().Get("class_id"))
		writeData(w, http.StatusOK, []map[string]interface{}{
			{"id": 1, "class_id": 41, "subject_id": 2, "teacher_id": 7, "day_of_week": "Monday", "start_time": "07:00:00", "end_time": "08:00:00"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	schedules, err := client.ListSchedules(context.Background(), NewSession("tok"), 41)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, int64(7), schedules[0].TeacherID)
}

func TestLoginWithoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeData(w, http.StatusOK, map[string]interface{}{
			"token": "abc",
			"user":  map[string]interface{}{"id": 4, "email": "p@school.test", "role": "PRINCIPAL"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	result, err := client.Login(context.Background(), models.LoginRequest{Email: "p@school.test", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "abc", result.Token)
	assert.Equal(t, models.RolePrincipal, result.User.Role)
}
