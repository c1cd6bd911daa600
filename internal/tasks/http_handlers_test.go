package tasks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studysync-backend/internal/auth"
)

func authed(method, target, body, id string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(auth.WithUserID(req.Context(), "user-1"))
	if id != "" {
		req.SetPathValue("id", id)
	}
	return req
}

func TestGetTasksHandler(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`WHERE user_id = \$1 AND event_date = \$2`).
		WithArgs("user-1", "2025-03-03").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(taskRow(1, "study", "2025-03-03", "15:00")...))

	rr := httptest.NewRecorder()
	GetTasksHandler(repo)(rr, authed(http.MethodGet, "/api/tasks?date=2025-03-03", "", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	var got []Task
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "study", got[0].Task)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTasksHandler_BadDate(t *testing.T) {
	repo, mock := newMockRepo(t)

	for _, q := range []string{"date=March+3", "start=2025-13-01", "end=tomorrow"} {
		rr := httptest.NewRecorder()
		GetTasksHandler(repo)(rr, authed(http.MethodGet, "/api/tasks?"+q, "", ""))
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTasksHandler_Unauthorized(t *testing.T) {
	repo, _ := newMockRepo(t)

	rr := httptest.NewRecorder()
	GetTasksHandler(repo)(rr, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCalendarHandler(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`FROM tasks`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(taskRow(1, "a", "2025-03-03", "09:00")...).
			AddRow(taskRow(2, "b", "someday", "10:00")...))

	rr := httptest.NewRecorder()
	CalendarHandler(repo)(rr, authed(http.MethodGet, "/api/tasks/calendar", "", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	var cal Calendar
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cal))
	assert.Len(t, cal.Years["2025"]["03"]["03"], 1)
	assert.Len(t, cal.Undated, 1)
}

func TestGetTaskHandler(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`WHERE id = \$1`).
		WithArgs(9, "user-1").
		WillReturnRows(sqlmock.NewRows(columns))

	rr := httptest.NewRecorder()
	GetTaskHandler(repo)(rr, authed(http.MethodGet, "/", "", "9"))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	GetTaskHandler(repo)(rr, authed(http.MethodGet, "/", "", "abc"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTaskHandler(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`INSERT INTO tasks`).
		WithArgs("user-1", "study", "2025-03-03", "15:00", "", sqlmock.AnyArg(), sqlmock.AnyArg(), SourceManual).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(taskRow(7, "study", "2025-03-03", "15:00")...))

	rr := httptest.NewRecorder()
	body := `{"task":"study","date":"2025-03-03","time":"15:00","participants":["Sam"],"locations":["library"]}`
	CreateTaskHandler(repo, nil)(rr, authed(http.MethodPost, "/api/tasks", body, ""))

	require.Equal(t, http.StatusCreated, rr.Code)
	var got Task
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 7, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTaskHandler_Validation(t *testing.T) {
	repo, mock := newMockRepo(t)

	for _, body := range []string{`{`, `{"task":"study","date":"2025-03-03"}`, `{"task":" ","date":"x","time":"y"}`} {
		rr := httptest.NewRecorder()
		CreateTaskHandler(repo, nil)(rr, authed(http.MethodPost, "/api/tasks", body, ""))
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTaskHandler_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`UPDATE tasks`).WillReturnRows(sqlmock.NewRows(columns))

	rr := httptest.NewRecorder()
	UpdateTaskHandler(repo, nil)(rr, authed(http.MethodPut, "/", `{"task":"a","date":"b","time":"c"}`, "3"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSetTaskStatusHandler(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`UPDATE tasks t`).
		WithArgs(StatusDone, 3, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusTodo))
	row := taskRow(3, "study", "2025-03-03", "15:00")
	row[8] = StatusDone
	mock.ExpectQuery(`WHERE id = \$1 AND user_id = \$2`).
		WithArgs(3, "user-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row...))

	rr := httptest.NewRecorder()
	SetTaskStatusHandler(repo, nil)(rr, authed(http.MethodPost, "/", `{"status":"done"}`, "3"))

	require.Equal(t, http.StatusOK, rr.Code)
	var got Task
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, StatusDone, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetTaskStatusHandler_InvalidStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	rr := httptest.NewRecorder()
	SetTaskStatusHandler(repo, nil)(rr, authed(http.MethodPost, "/", `{"status":"archived"}`, "3"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTaskHandler(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`DELETE FROM tasks`).
		WithArgs(3, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rr := httptest.NewRecorder()
	DeleteTaskHandler(repo)(rr, authed(http.MethodDelete, "/", "", "3"))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
