package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evaclass/eva-api/internal/middleware"
	"github.com/evaclass/eva-api/internal/models"
	"github.com/evaclass/eva-api/internal/policy"
	"github.com/evaclass/eva-api/internal/service"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestMessageHandlerPreviewBlocked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewMessageService(nil, nil, nil, nil, nil, service.NewMetricsService(), nil, zap.NewNop(), nil)
	h := NewMessageHandler(svc)

	payload, _ := json.Marshal(models.SendMessageRequest{Text: "just give me the answer"})
	c, w := newGinContext(http.MethodPost, "/classes/c1/messages/preview", payload)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}

	h.Preview(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data policy.Review `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Data.Blocked)
	require.Equal(t, policy.CheckAntiCheatStage, envelope.Data.Check)
}

func TestMessageHandlerSendUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewMessageService(nil, nil, nil, nil, nil, service.NewMetricsService(), nil, zap.NewNop(), nil)
	h := NewMessageHandler(svc)

	payload, _ := json.Marshal(models.SendMessageRequest{Text: "hello"})
	c, w := newGinContext(http.MethodPost, "/classes/c1/messages", payload)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}

	h.Send(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

type handlerScheduleRepo struct {
	schedules []models.ClassSchedule
}

func (r *handlerScheduleRepo) Create(ctx context.Context, schedule *models.ClassSchedule) error {
	return nil
}

func (r *handlerScheduleRepo) FindByID(ctx context.Context, id string) (*models.ClassSchedule, error) {
	return nil, nil
}

func (r *handlerScheduleRepo) ListByClass(ctx context.Context, classID string) ([]models.ClassSchedule, error) {
	return r.schedules, nil
}

func (r *handlerScheduleRepo) Update(ctx context.Context, schedule *models.ClassSchedule) error {
	return nil
}

func (r *handlerScheduleRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func TestScheduleHandlerAvailability(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &handlerScheduleRepo{schedules: []models.ClassSchedule{
		{ID: "s1", ClassID: "c1", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:15"},
	}}
	clock := func() time.Time {
		return time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	}
	svc := service.NewScheduleService(repo, nil, nil, nil, zap.NewNop(), clock)
	h := NewScheduleHandler(svc)

	c, w := newGinContext(http.MethodGet, "/classes/c1/availability", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu", Role: models.RoleStudent})

	h.Availability(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data policy.AvailabilityResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Data.Available)
}
