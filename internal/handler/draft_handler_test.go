package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-class-console/internal/middleware"
	"github.com/noah-isme/sma-class-console/internal/models"
	"github.com/noah-isme/sma-class-console/internal/service"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

type draftManagerMock struct {
	classID     int64
	token       string
	field       string
	value       string
	slotIndex   int
	calls       int
	submitRes   *service.SubmissionResult
	submitErr   error
	validateRes *service.ValidationReport
}

func (m *draftManagerMock) Create(_ context.Context, _ service.Actor, session *upstream.Session, classID int64) (*service.DraftSession, error) {
	m.calls++
	m.classID = classID
	m.token = session.Token()
	return &service.DraftSession{Draft: &models.Draft{ID: "d-1"}, Reference: &models.ReferenceData{}}, nil
}

func (m *draftManagerMock) Get(_ context.Context, actor service.Actor, id string) (*models.Draft, error) {
	m.calls++
	return &models.Draft{ID: id, OwnerID: actor.ID}, nil
}

func (m *draftManagerMock) UpdateField(_ context.Context, _ service.Actor, id, field, value string) (*models.Draft, error) {
	m.calls++
	m.field, m.value = field, value
	return &models.Draft{ID: id}, nil
}

func (m *draftManagerMock) AddSlot(_ context.Context, _ service.Actor, id string) (*models.Draft, error) {
	m.calls++
	return &models.Draft{ID: id, Slots: []models.ScheduleSlotDraft{{DayOfWeek: "Monday"}}}, nil
}

func (m *draftManagerMock) UpdateSlot(_ context.Context, _ service.Actor, id string, index int, field, value string) (*models.Draft, error) {
	m.calls++
	m.slotIndex, m.field, m.value = index, field, value
	return &models.Draft{ID: id}, nil
}

func (m *draftManagerMock) RemoveSlot(_ context.Context, _ service.Actor, id string, index int) (*models.Draft, error) {
	m.calls++
	m.slotIndex = index
	if index > 0 {
		return nil, appErrors.Clone(appErrors.ErrSlotNotFound, "")
	}
	return &models.Draft{ID: id}, nil
}

func (m *draftManagerMock) Validate(context.Context, service.Actor, string) (*service.ValidationReport, error) {
	m.calls++
	return m.validateRes, nil
}

func (m *draftManagerMock) Submit(_ context.Context, _ service.Actor, session *upstream.Session, _ string) (*service.SubmissionResult, error) {
	m.calls++
	m.token = session.Token()
	return m.submitRes, m.submitErr
}

func (m *draftManagerMock) Discard(context.Context, service.Actor, string) error {
	m.calls++
	return nil
}

func newDraftContext(method, target string, body []byte, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	c.Params = params
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "principal-1", Role: models.RolePrincipal})
	c.Set(middleware.ContextTokenKey, "upstream-token")
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDraftCreateWithoutBodyOpensCreateMode(t *testing.T) {
	mock := &draftManagerMock{}
	h := &DraftHandler{service: mock}
	c, w := newDraftContext(http.MethodPost, "/class-drafts", nil)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(0), mock.classID)
	assert.Equal(t, "upstream-token", mock.token)
}

func TestDraftCreateWithClassIDOpensEditMode(t *testing.T) {
	mock := &draftManagerMock{}
	h := &DraftHandler{service: mock}
	c, w := newDraftContext(http.MethodPost, "/class-drafts", []byte(`{"class_id":42}`))

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(42), mock.classID)
}

func TestDraftCreateRequiresSession(t *testing.T) {
	mock := &draftManagerMock{}
	h := &DraftHandler{service: mock}
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/class-drafts", nil)

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, mock.calls)
}

func TestDraftUpdateFieldRejectsUnknownField(t *testing.T) {
	mock := &draftManagerMock{}
	h := &DraftHandler{service: mock}
	c, w := newDraftContext(http.MethodPatch, "/class-drafts/d-1", []byte(`{"field":"room","value":"A"}`), gin.Param{Key: "id", Value: "d-1"})

	h.UpdateField(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, mock.calls)
}

func TestDraftUpdateFieldForwardsChange(t *testing.T) {
	mock := &draftManagerMock{}
	h := &DraftHandler{service: mock}
	c, w := newDraftContext(http.MethodPatch, "/class-drafts/d-1", []byte(`{"field":"name","value":"Grade 7A"}`), gin.Param{Key: "id", Value: "d-1"})

	h.UpdateField(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "name", mock.field)
	assert.Equal(t, "Grade 7A", mock.value)
}

func TestDraftUpdateSlotParsesIndex(t *testing.T) {
	mock := &draftManagerMock{}
	h := &DraftHandler{service: mock}
	c, w := newDraftContext(http.MethodPatch, "/class-drafts/d-1/slots/2", []byte(`{"field":"teacherId","value":"11"}`),
		gin.Param{Key: "id", Value: "d-1"}, gin.Param{Key: "index", Value: "2"})

	h.UpdateSlot(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, mock.slotIndex)
	assert.Equal(t, "teacherId", mock.field)
}

func TestDraftUpdateSlotRejectsNonNumericIndex(t *testing.T) {
	mock := &draftManagerMock{}
	h := &DraftHandler{service: mock}
	c, w := newDraftContext(http.MethodPatch, "/class-drafts/d-1/slots/x", []byte(`{"field":"teacherId","value":"11"}`),
		gin.Param{Key: "id", Value: "d-1"}, gin.Param{Key: "index", Value: "x"})

	h.UpdateSlot(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, mock.calls)
}

func TestDraftRemoveSlotOutOfRange(t *testing.T) {
	mock := &draftManagerMock{}
	h := &DraftHandler{service: mock}
	c, w := newDraftContext(http.MethodDelete, "/class-drafts/d-1/slots/3", nil,
		gin.Param{Key: "id", Value: "d-1"}, gin.Param{Key: "index", Value: "3"})

	h.RemoveSlot(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "SLOT_NOT_FOUND")
}

func TestDraftSubmitValidationFailureCarriesDetails(t *testing.T) {
	index := 1
	mock := &draftManagerMock{submitErr: service.ValidationError(models.ValidationResult{
		Kind:      models.ValidationInvalidTimeRange,
		Field:     "startTime",
		Message:   "slot 2: end time must be after start time",
		SlotIndex: &index,
	})}
	h := &DraftHandler{service: mock}
	c, w := newDraftContext(http.MethodPost, "/class-drafts/d-1/submit", nil, gin.Param{Key: "id", Value: "d-1"})

	h.Submit(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeEnvelope(t, w)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
	details := errBody["details"].(map[string]interface{})
	assert.Equal(t, "InvalidTimeRange", details["kind"])
	assert.Equal(t, float64(1), details["slotIndex"])
}

func TestDraftSubmitPartialFailureReportsCreatedClass(t *testing.T) {
	mock := &draftManagerMock{
		submitRes: &service.SubmissionResult{Mode: models.DraftModeCreate, Status: models.SubmissionFailed, ClassID: 77},
		submitErr: appErrors.WithDetails(appErrors.ErrScheduleCreation, "", service.SlotFailureDetails{ClassID: 77, FailedSlots: []int{1}, Created: 2, Total: 3}),
	}
	h := &DraftHandler{service: mock}
	c, w := newDraftContext(http.MethodPost, "/class-drafts/d-1/submit", nil, gin.Param{Key: "id", Value: "d-1"})

	h.Submit(c)

	require.Equal(t, http.StatusBadGateway, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "SCHEDULE_CREATION_FAILED", errBody["code"])
	assert.Equal(t, float64(77), errBody["details"].(map[string]interface{})["classId"])
}

func TestDraftSubmitStatusByMode(t *testing.T) {
	cases := map[models.DraftMode]int{
		models.DraftModeCreate: http.StatusCreated,
		models.DraftModeEdit:   http.StatusOK,
	}
	for mode, status := range cases {
		mock := &draftManagerMock{submitRes: &service.SubmissionResult{Mode: mode, Status: models.SubmissionSucceeded, ClassID: 5}}
		h := &DraftHandler{service: mock}
		c, w := newDraftContext(http.MethodPost, "/class-drafts/d-1/submit", nil, gin.Param{Key: "id", Value: "d-1"})

		h.Submit(c)

		assert.Equal(t, status, w.Code, string(mode))
		assert.Equal(t, "upstream-token", mock.token)
	}
}

func TestDraftValidateReturnsWarnings(t *testing.T) {
	mock := &draftManagerMock{validateRes: &service.ValidationReport{
		Result:   models.ValidationResult{Valid: true},
		Warnings: []models.SlotOverlap{{First: 0, Second: 1, DayOfWeek: "Monday", TeacherID: "11"}},
	}}
	h := &DraftHandler{service: mock}
	c, w := newDraftContext(http.MethodPost, "/class-drafts/d-1/validate", nil, gin.Param{Key: "id", Value: "d-1"})

	h.Validate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"warnings":[{"first":0,"second":1`)
}

func TestDraftDiscard(t *testing.T) {
	mock := &draftManagerMock{}
	h := &DraftHandler{service: mock}
	c, w := newDraftContext(http.MethodDelete, "/class-drafts/d-1", nil, gin.Param{Key: "id", Value: "d-1"})

	h.Discard(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, mock.calls)
}
