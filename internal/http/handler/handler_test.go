package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
	repomocks "fmeaflow/internal/repository/mocks"
	"fmeaflow/internal/service"
	storagemocks "fmeaflow/internal/storage/mocks"
)

type handlerFixture struct {
	docs     *repomocks.MockDocumentRepository
	users    *repomocks.MockUserRepository
	tokens   *repomocks.MockTokenRepository
	audits   *repomocks.MockAuditRepository
	settings *repomocks.MockSettingsRepository
	flow     *repomocks.MockWorkflowRepository

	db     *sql.DB
	dbMock sqlmock.Sqlmock
	app    *fiber.App
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &handlerFixture{
		docs:     new(repomocks.MockDocumentRepository),
		users:    new(repomocks.MockUserRepository),
		tokens:   new(repomocks.MockTokenRepository),
		audits:   new(repomocks.MockAuditRepository),
		settings: new(repomocks.MockSettingsRepository),
		flow:     new(repomocks.MockWorkflowRepository),
		db:       db,
		dbMock:   dbMock,
	}

	tokenSvc := service.NewTokenService(f.tokens)
	recorder := service.NewRecorder(f.audits)
	notifier := service.NewNotifier(f.settings)
	wf := service.NewWorkflow(f.docs, f.users, f.flow, tokenSvc, notifier,
		recorder, service.NewBroadcaster(), new(storagemocks.MockStorage))
	settingsSvc := service.NewSettingsService(f.settings)
	rec := service.NewReconciler(f.settings, tokenSvc, wf)

	f.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(f.app, db, Services{
		Workflow: wf,
		Recorder: recorder,
		Tokens:   tokenSvc,
		Users:    service.NewUserService(f.users),
		Settings: settingsSvc,
		Poller:   service.NewPoller(rec, time.Minute),
		Status:   rec.LastCheckTime,
	})
	return f
}

func TestHealth(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("healthy", func(t *testing.T) {
		f.dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		f.dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestListDocuments(t *testing.T) {
	f := newHandlerFixture(t)

	f.docs.On("List", mock.Anything, repository.PageQuery{Limit: 10, Offset: 0}).Return(
		&repository.PageResult[model.Document]{
			Items: []model.Document{{ID: uuid.NewString(), Name: "Pump FMEA", Status: model.StatusDraft}},
			Total: 1,
		}, nil)

	resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, "/documents?limit=10", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Items []model.Document `json:"items"`
		Total int              `json:"total"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Pump FMEA", body.Items[0].Name)
	assert.Equal(t, 1, body.Total)
}

func TestGetDocument(t *testing.T) {
	f := newHandlerFixture(t)
	id := uuid.NewString()

	t.Run("invalid id", func(t *testing.T) {
		resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		f.docs.On("FindByID", mock.Anything, id).Return(nil, sql.ErrNoRows).Once()

		resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("found", func(t *testing.T) {
		f.docs.On("FindByID", mock.Anything, id).Return(&model.DocumentWithUsers{
			Document: model.Document{ID: id, Name: "Pump FMEA", Status: model.StatusUnderReview, Version: "0.2.0"},
		}, nil).Once()

		resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body model.DocumentWithUsers
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "0.2.0", body.Version)
	})
}

func TestDocumentAudit(t *testing.T) {
	f := newHandlerFixture(t)
	id := uuid.NewString()

	f.audits.On("ListByDocument", mock.Anything, id).Return([]model.AuditLog{
		{ID: 2, DocumentID: id, Field: "Status"},
		{ID: 1, DocumentID: id, Field: "C12"},
	}, nil)

	resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id+"/audit", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Items []model.AuditLog `json:"items"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	require.Len(t, body.Items, 2)
	assert.Equal(t, int64(2), body.Items[0].ID)
}

func TestSystemAuditRejectsBadTimestamp(t *testing.T) {
	f := newHandlerFixture(t)

	resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, "/audit?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorPayload
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "INVALID_FROM", body.Error.Code)
}

func TestCreateUserValidation(t *testing.T) {
	f := newHandlerFixture(t)

	payload, _ := json.Marshal(model.User{Name: "Ira Holt", Email: "not-an-address"})
	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := f.app.Test(req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSettingsGetUnconfigured(t *testing.T) {
	f := newHandlerFixture(t)
	f.settings.On("Get", mock.Anything).Return(nil, sql.ErrNoRows)

	resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, "/settings", nil))
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	var body errorPayload
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "MAIL_NOT_CONFIGURED", body.Error.Code)
}

func TestReconcilerPollNotConfigured(t *testing.T) {
	f := newHandlerFixture(t)
	f.settings.On("Get", mock.Anything).Return(nil, sql.ErrNoRows)

	resp, _ := f.app.Test(httptest.NewRequest(http.MethodPost, "/reconciler/poll", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "Email receiving is not configured.", body["summary"])
}

func TestReconcilerStatusNeverChecked(t *testing.T) {
	f := newHandlerFixture(t)

	resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, "/reconciler/status", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, false, body["checked"])
}
