package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"church-checkin/internal/auth"
	"church-checkin/internal/models"
)

func TestCheckIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/checkin", r.URL.Path)
		assert.Equal(t, "Bearer scanner-token", r.Header.Get("Authorization"))

		var req models.CheckInRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "front-door", req.Station)

		w.Header().Set("Content-Type", "application/json")
		switch req.Code {
		case "abc123":
			_ = json.NewEncoder(w).Encode(models.CheckInResult{
				Success:  true,
				Kind:     models.CheckInRecorded,
				Identity: &models.IdentitySummary{Code: "abc123", FirstName: "Ana"},
			})
		default:
			_ = json.NewEncoder(w).Encode(models.CheckInResult{Kind: models.CheckInNotFound, Error: "Identity Not Found"})
		}
	}))
	defer server.Close()

	c := New(server.URL, WithToken("scanner-token"), WithStation("front-door"))

	result, err := c.CheckIn(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Ana", result.Identity.FirstName)

	result, err = c.CheckIn(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.CheckInNotFound, result.Kind)
}

func TestCheckInIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to record attendance"}`))
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.CheckIn(context.Background(), "abc123")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
	assert.Equal(t, "failed to record attendance", statusErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCheckInTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url).CheckIn(context.Background(), "abc123")
	assert.Error(t, err)
}

func TestDashboardRetriesReads(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "2026-10-18", r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.DashboardStats{Date: "2026-10-18", TotalAttendance: 3, Page: 2, TotalPages: 2})
	}))
	defer server.Close()

	c := New(server.URL, WithReadRetries(2, time.Millisecond, 5*time.Millisecond))
	stats, err := c.Dashboard(context.Background(), 2, "2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalAttendance)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDashboardUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"missing bearer token"}`))
	}))
	defer server.Close()

	_, err := New(server.URL).Dashboard(context.Background(), 0, "")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
}

func TestLoginStoresToken(t *testing.T) {
	expires := time.Date(2026, 10, 18, 21, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "scanner", body["role"])
			_ = json.NewEncoder(w).Encode(map[string]any{"token": "issued", "expiresAt": expires})
		case "/api/checkin":
			assert.Equal(t, "Bearer issued", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(models.CheckInResult{Success: true, Kind: models.CheckInRecorded})
		}
	}))
	defer server.Close()

	c := New(server.URL)
	got, err := c.Login(context.Background(), auth.RoleScanner, "secret")
	require.NoError(t, err)
	assert.True(t, expires.Equal(got))

	_, err = c.CheckIn(context.Background(), "abc123")
	require.NoError(t, err)
}
