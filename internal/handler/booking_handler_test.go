package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stillpoint-yoga/studio/internal/auth"
	"github.com/stillpoint-yoga/studio/internal/dto"
	"github.com/stillpoint-yoga/studio/internal/middleware"
	"github.com/stillpoint-yoga/studio/internal/models"
	"github.com/stillpoint-yoga/studio/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock BookingService ---

type mockBookingService struct {
	requestFn   func(ctx context.Context, userID string, classID uint, date time.Time) (*models.Booking, error)
	cancelFn    func(ctx context.Context, bookingID uint) (*models.Booking, error)
	updateFn    func(ctx context.Context, bookingID uint, status models.BookingStatus) (*models.Booking, error)
	getFn       func(ctx context.Context, id uint) (*models.Booking, error)
	deleteFn    func(ctx context.Context, id uint) error
	rosterFn    func(ctx context.Context, classID uint, date time.Time) ([]models.Booking, error)
	userFn      func(ctx context.Context, userID string) ([]models.Booking, error)
	occupancyFn func(ctx context.Context, classID uint, date time.Time) (*models.Occupancy, error)
}

func (m *mockBookingService) RequestBooking(ctx context.Context, userID string, classID uint, date time.Time) (*models.Booking, error) {
	return m.requestFn(ctx, userID, classID, date)
}
func (m *mockBookingService) CancelBooking(ctx context.Context, bookingID uint) (*models.Booking, error) {
	return m.cancelFn(ctx, bookingID)
}
func (m *mockBookingService) UpdateStatus(ctx context.Context, bookingID uint, status models.BookingStatus) (*models.Booking, error) {
	return m.updateFn(ctx, bookingID, status)
}
func (m *mockBookingService) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	return m.getFn(ctx, id)
}
func (m *mockBookingService) DeleteBooking(ctx context.Context, id uint) error {
	return m.deleteFn(ctx, id)
}
func (m *mockBookingService) ListBookingsForClass(ctx context.Context, classID uint, date time.Time) ([]models.Booking, error) {
	return m.rosterFn(ctx, classID, date)
}
func (m *mockBookingService) ListUserBookings(ctx context.Context, userID string) ([]models.Booking, error) {
	return m.userFn(ctx, userID)
}
func (m *mockBookingService) GetOccupancy(ctx context.Context, classID uint, date time.Time) (*models.Occupancy, error) {
	return m.occupancyFn(ctx, classID, date)
}

// --- Helpers ---

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = middleware.NewRequestValidator()
	e.HTTPErrorHandler = middleware.ErrorHandler
	return e
}

func claimsFor(userID, role string) auth.Claims {
	claims := auth.Claims{Role: role}
	claims.Subject = userID
	return claims
}

func newContext(method, target string, body io.Reader, claims *auth.Claims, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := newEcho()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	if claims != nil {
		middleware.SetClaims(c, *claims)
	}
	return c, rec
}

func assertHTTPCode(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	assert.Equal(t, code, he.Code)
}

var member = claimsFor("user-1", auth.RoleMember)

func ownBooking(id uint, status models.BookingStatus) *models.Booking {
	return &models.Booking{ID: id, ClassID: 1, UserID: "user-1", Status: status}
}

// --- BookClass ---

func TestBookClass_Handler_Confirmed(t *testing.T) {
	var gotUser string
	var gotDate time.Time
	svc := &mockBookingService{
		requestFn: func(ctx context.Context, userID string, classID uint, date time.Time) (*models.Booking, error) {
			gotUser, gotDate = userID, date
			return &models.Booking{ID: 1, ClassID: classID, UserID: userID, Status: models.StatusConfirmed, CreatedAt: time.Now()}, nil
		},
	}

	c, rec := newContext(http.MethodPost, "/api/v1/classes/1/book", strings.NewReader(`{"date":"2026-03-02"}`), &member, "id", "1")
	err := NewBookingHandler(svc).BookClass(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-1", gotUser)
	assert.Equal(t, "2026-03-02", gotDate.Format(models.DateLayout))

	var resp dto.BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint(1), resp.ID)
	assert.Equal(t, models.StatusConfirmed, resp.Status)
	assert.Nil(t, resp.WaitlistPosition)
}

func TestBookClass_Handler_Waitlisted(t *testing.T) {
	pos := 2
	svc := &mockBookingService{
		requestFn: func(ctx context.Context, userID string, classID uint, date time.Time) (*models.Booking, error) {
			return &models.Booking{ID: 9, ClassID: classID, UserID: userID, Status: models.StatusWaitlisted, WaitlistPosition: &pos}, nil
		},
	}

	c, rec := newContext(http.MethodPost, "/api/v1/classes/1/book", strings.NewReader(`{"date":"2026-03-02"}`), &member, "id", "1")
	require.NoError(t, NewBookingHandler(svc).BookClass(c))

	var resp dto.BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusWaitlisted, resp.Status)
	require.NotNil(t, resp.WaitlistPosition)
	assert.Equal(t, 2, *resp.WaitlistPosition)
	assert.Contains(t, resp.Message, "number 2 on the waitlist")
}

func TestBookClass_Handler_BadInput(t *testing.T) {
	h := NewBookingHandler(nil)

	c, _ := newContext(http.MethodPost, "/api/v1/classes/abc/book", strings.NewReader(`{"date":"2026-03-02"}`), &member, "id", "abc")
	assertHTTPCode(t, h.BookClass(c), http.StatusBadRequest)

	c, _ = newContext(http.MethodPost, "/api/v1/classes/1/book", strings.NewReader(`{"date":"next monday"}`), &member, "id", "1")
	assertHTTPCode(t, h.BookClass(c), http.StatusBadRequest)

	c, _ = newContext(http.MethodPost, "/api/v1/classes/1/book", strings.NewReader(`{}`), &member, "id", "1")
	assertHTTPCode(t, h.BookClass(c), http.StatusBadRequest)

	c, _ = newContext(http.MethodPost, "/api/v1/classes/1/book", strings.NewReader(`{"date":"2026-03-02"}`), nil, "id", "1")
	assertHTTPCode(t, h.BookClass(c), http.StatusUnauthorized)
}

func TestBookClass_Handler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{service.ErrClassNotFound, http.StatusNotFound},
		{service.ErrAlreadyBooked, http.StatusConflict},
		{service.ErrInvalidOccurrence, http.StatusBadRequest},
		{service.ErrBookingClosed, http.StatusBadRequest},
		{errors.Join(service.ErrPersistence, errors.New("dial tcp: refused")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := &mockBookingService{
				requestFn: func(ctx context.Context, userID string, classID uint, date time.Time) (*models.Booking, error) {
					return nil, tt.err
				},
			}
			c, _ := newContext(http.MethodPost, "/api/v1/classes/1/book", strings.NewReader(`{"date":"2026-03-02"}`), &member, "id", "1")
			assertHTTPCode(t, NewBookingHandler(svc).BookClass(c), tt.code)
		})
	}
}

func TestPersistenceErrorHidesDetails(t *testing.T) {
	err := toHTTPError(errors.Join(service.ErrPersistence, errors.New("password authentication failed")))
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, "persistence error", he.Message)
}

// --- Cancel / Update ---

func TestCancelBooking_Handler_Success(t *testing.T) {
	svc := &mockBookingService{
		getFn: func(ctx context.Context, id uint) (*models.Booking, error) { return ownBooking(id, models.StatusConfirmed), nil },
		cancelFn: func(ctx context.Context, bookingID uint) (*models.Booking, error) {
			return ownBooking(bookingID, models.StatusCancelled), nil
		},
	}

	c, rec := newContext(http.MethodDelete, "/api/v1/bookings/1", nil, &member, "id", "1")
	require.NoError(t, NewBookingHandler(svc).CancelBooking(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp dto.BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusCancelled, resp.Status)
}

func TestCancelBooking_Handler_NotFound(t *testing.T) {
	svc := &mockBookingService{
		getFn: func(ctx context.Context, id uint) (*models.Booking, error) { return nil, service.ErrBookingNotFound },
	}

	c, _ := newContext(http.MethodDelete, "/api/v1/bookings/999", nil, &member, "id", "999")
	assertHTTPCode(t, NewBookingHandler(svc).CancelBooking(c), http.StatusNotFound)
}

func TestCancelBooking_Handler_OtherMember(t *testing.T) {
	svc := &mockBookingService{
		getFn: func(ctx context.Context, id uint) (*models.Booking, error) {
			return &models.Booking{ID: id, UserID: "user-2", Status: models.StatusConfirmed}, nil
		},
		cancelFn: func(ctx context.Context, bookingID uint) (*models.Booking, error) {
			t.Fatal("cancel must not be called")
			return nil, nil
		},
	}

	c, _ := newContext(http.MethodDelete, "/api/v1/bookings/3", nil, &member, "id", "3")
	assertHTTPCode(t, NewBookingHandler(svc).CancelBooking(c), http.StatusForbidden)
}

func TestUpdateBooking_Handler_Attendance(t *testing.T) {
	var gotStatus models.BookingStatus
	svc := &mockBookingService{
		getFn: func(ctx context.Context, id uint) (*models.Booking, error) { return ownBooking(id, models.StatusConfirmed), nil },
		updateFn: func(ctx context.Context, bookingID uint, status models.BookingStatus) (*models.Booking, error) {
			gotStatus = status
			return ownBooking(bookingID, status), nil
		},
	}
	h := NewBookingHandler(svc)

	// members cannot record attendance, even for their own booking
	c, _ := newContext(http.MethodPut, "/api/v1/bookings/1", strings.NewReader(`{"status":"attended"}`), &member, "id", "1")
	assertHTTPCode(t, h.UpdateBooking(c), http.StatusForbidden)

	admin := claimsFor("staff-1", auth.RoleAdmin)
	c, rec := newContext(http.MethodPut, "/api/v1/bookings/1", strings.NewReader(`{"status":"no-show"}`), &admin, "id", "1")
	require.NoError(t, h.UpdateBooking(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusNoShow, gotStatus)
}

func TestUpdateBooking_Handler_MemberCancel(t *testing.T) {
	svc := &mockBookingService{
		getFn: func(ctx context.Context, id uint) (*models.Booking, error) { return ownBooking(id, models.StatusWaitlisted), nil },
		updateFn: func(ctx context.Context, bookingID uint, status models.BookingStatus) (*models.Booking, error) {
			return ownBooking(bookingID, status), nil
		},
	}

	c, rec := newContext(http.MethodPut, "/api/v1/bookings/1", strings.NewReader(`{"status":"cancelled"}`), &member, "id", "1")
	require.NoError(t, NewBookingHandler(svc).UpdateBooking(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateBooking_Handler_InvalidStatus(t *testing.T) {
	h := NewBookingHandler(&mockBookingService{})

	c, _ := newContext(http.MethodPut, "/api/v1/bookings/1", strings.NewReader(`{"status":"confirmed"}`), &member, "id", "1")
	assertHTTPCode(t, h.UpdateBooking(c), http.StatusBadRequest)
}

func TestUpdateBooking_Handler_Terminal(t *testing.T) {
	svc := &mockBookingService{
		getFn: func(ctx context.Context, id uint) (*models.Booking, error) { return ownBooking(id, models.StatusAttended), nil },
		updateFn: func(ctx context.Context, bookingID uint, status models.BookingStatus) (*models.Booking, error) {
			return nil, service.ErrInvalidTransition
		},
	}

	c, _ := newContext(http.MethodPut, "/api/v1/bookings/1", strings.NewReader(`{"status":"cancelled"}`), &member, "id", "1")
	assertHTTPCode(t, NewBookingHandler(svc).UpdateBooking(c), http.StatusConflict)
}

// --- Reads ---

func TestGetBooking_Handler(t *testing.T) {
	svc := &mockBookingService{
		getFn: func(ctx context.Context, id uint) (*models.Booking, error) { return ownBooking(id, models.StatusConfirmed), nil },
	}

	c, rec := newContext(http.MethodGet, "/api/v1/bookings/1", nil, &member, "id", "1")
	require.NoError(t, NewBookingHandler(svc).GetBooking(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	admin := claimsFor("staff-1", auth.RoleAdmin)
	c, rec = newContext(http.MethodGet, "/api/v1/bookings/1", nil, &admin, "id", "1")
	require.NoError(t, NewBookingHandler(svc).GetBooking(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListBookings_Handler_Own(t *testing.T) {
	var gotUser string
	svc := &mockBookingService{
		userFn: func(ctx context.Context, userID string) ([]models.Booking, error) {
			gotUser = userID
			return []models.Booking{*ownBooking(1, models.StatusConfirmed), *ownBooking(2, models.StatusCancelled)}, nil
		},
	}

	// a member cannot look at someone else's bookings
	c, rec := newContext(http.MethodGet, "/api/v1/bookings?user_id=user-9", nil, &member)
	require.NoError(t, NewBookingHandler(svc).ListBookings(c))
	assert.Equal(t, "user-1", gotUser)

	var resp []dto.BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)

	admin := claimsFor("staff-1", auth.RoleAdmin)
	c, _ = newContext(http.MethodGet, "/api/v1/bookings?user_id=user-9", nil, &admin)
	require.NoError(t, NewBookingHandler(svc).ListBookings(c))
	assert.Equal(t, "user-9", gotUser)
}

func TestListBookings_Handler_Roster(t *testing.T) {
	var gotClass uint
	svc := &mockBookingService{
		rosterFn: func(ctx context.Context, classID uint, date time.Time) ([]models.Booking, error) {
			gotClass = classID
			return []models.Booking{{ID: 1, ClassID: classID, Status: models.StatusConfirmed}}, nil
		},
	}
	h := NewBookingHandler(svc)

	c, _ := newContext(http.MethodGet, "/api/v1/bookings?class_id=4&date=2026-03-02", nil, &member)
	assertHTTPCode(t, h.ListBookings(c), http.StatusForbidden)

	admin := claimsFor("staff-1", auth.RoleAdmin)
	c, rec := newContext(http.MethodGet, "/api/v1/bookings?class_id=4&date=2026-03-02", nil, &admin)
	require.NoError(t, h.ListBookings(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint(4), gotClass)

	c, _ = newContext(http.MethodGet, "/api/v1/bookings?class_id=4", nil, &admin)
	assertHTTPCode(t, h.ListBookings(c), http.StatusBadRequest)
}

func TestListClassBookings_Handler(t *testing.T) {
	svc := &mockBookingService{
		rosterFn: func(ctx context.Context, classID uint, date time.Time) ([]models.Booking, error) {
			return nil, service.ErrClassNotFound
		},
	}

	admin := claimsFor("staff-1", auth.RoleAdmin)
	c, _ := newContext(http.MethodGet, "/api/v1/classes/8/bookings?date=2026-03-02", nil, &admin, "id", "8")
	assertHTTPCode(t, NewBookingHandler(svc).ListClassBookings(c), http.StatusNotFound)
}

func TestGetOccupancy_Handler(t *testing.T) {
	svc := &mockBookingService{
		occupancyFn: func(ctx context.Context, classID uint, date time.Time) (*models.Occupancy, error) {
			return &models.Occupancy{ClassID: classID, Date: date.Format(models.DateLayout), Capacity: 10, Confirmed: 4, SeatsAvailable: 6}, nil
		},
	}

	c, rec := newContext(http.MethodGet, "/api/v1/classes/2/status?date=2026-03-02", nil, &member, "id", "2")
	require.NoError(t, NewBookingHandler(svc).GetOccupancy(c))

	var occ models.Occupancy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &occ))
	assert.Equal(t, 6, occ.SeatsAvailable)
	assert.Equal(t, "2026-03-02", occ.Date)
}

func TestDeleteBooking_Handler(t *testing.T) {
	svc := &mockBookingService{
		deleteFn: func(ctx context.Context, id uint) error {
			if id == 1 {
				return nil
			}
			return service.ErrBookingNotFound
		},
	}
	admin := claimsFor("staff-1", auth.RoleAdmin)

	c, rec := newContext(http.MethodDelete, "/api/v1/admin/bookings/1", nil, &admin, "id", "1")
	require.NoError(t, NewBookingHandler(svc).DeleteBooking(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, _ = newContext(http.MethodDelete, "/api/v1/admin/bookings/2", nil, &admin, "id", "2")
	assertHTTPCode(t, NewBookingHandler(svc).DeleteBooking(c), http.StatusNotFound)
}

// Routes are wired behind JWT auth and render errors in the studio envelope.
func TestRegisterRoutes_EndToEnd(t *testing.T) {
	const key, issuer = "route-test-key", "studio-test"
	svc := &mockBookingService{
		requestFn: func(ctx context.Context, userID string, classID uint, date time.Time) (*models.Booking, error) {
			return nil, service.ErrAlreadyBooked
		},
	}

	e := newEcho()
	api := e.Group("/api/v1", middleware.JWTAuth(key, issuer))
	NewBookingHandler(svc).RegisterRoutes(api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classes/1/book", strings.NewReader(`{"date":"2026-03-02"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.Issue("user-1", auth.RoleMember, issuer, key, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/classes/1/book", strings.NewReader(`{"date":"2026-03-02"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, service.ErrAlreadyBooked.Error(), body.Message)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/admin/bookings/1", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
