// Package repository provides PocketBase REST API implementations
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/tools/types"

	"church-checkin/internal/models"
)

const (
	identitiesCollection = "identities"
	attendanceCollection = "attendance"
	pocketBasePerPage    = 200
)

// pocketBaseClient holds the connection details shared by the PocketBase repositories
type pocketBaseClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

func newPocketBaseClient(baseURL, authToken string, logger *slog.Logger) *pocketBaseClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &pocketBaseClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With("component", "pocketbase"),
	}
}

func (c *pocketBaseClient) addAuthHeader(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", c.authToken)
	}
}

// do performs a request and decodes a JSON response into out when non-nil.
// Non-2xx responses are returned as *pocketBaseError.
func (c *pocketBaseClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addAuthHeader(req)

	c.logger.Debug("pocketbase request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return &pocketBaseError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

type pocketBaseError struct {
	Status int
	Body   string
}

func (e *pocketBaseError) Error() string {
	return fmt.Sprintf("pocketbase: HTTP %d - %s", e.Status, e.Body)
}

func (e *pocketBaseError) notUnique() bool {
	return e.Status == http.StatusBadRequest &&
		(strings.Contains(e.Body, "validation_not_unique") || strings.Contains(e.Body, "must be unique"))
}

// Ping checks that the PocketBase server is reachable
func (c *pocketBaseClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

type listResponse[T any] struct {
	Page       int `json:"page"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
	Items      []T `json:"items"`
}

// quoteFilter escapes a value for use inside a single-quoted PocketBase filter literal
func quoteFilter(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return "'" + strings.ReplaceAll(value, "'", `\'`) + "'"
}

func recordsPath(collection string, query url.Values) string {
	path := fmt.Sprintf("/api/collections/%s/records", collection)
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return path
}

func parsePocketBaseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	dt, err := types.ParseDateTime(value)
	if err != nil {
		return time.Time{}
	}
	return dt.Time()
}

type identityRecord struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Ministry  string `json:"ministry"`
	Network   string `json:"network"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Created   string `json:"created"`
	Updated   string `json:"updated"`
}

func (r identityRecord) toModel() *models.Identity {
	return &models.Identity{
		ID:        r.ID,
		Code:      r.Code,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Ministry:  r.Ministry,
		Network:   r.Network,
		Email:     r.Email,
		Phone:     r.Phone,
		CreatedAt: parsePocketBaseTime(r.Created),
		UpdatedAt: parsePocketBaseTime(r.Updated),
	}
}

func identityPayload(identity *models.Identity) map[string]any {
	return map[string]any{
		"first_name": identity.FirstName,
		"last_name":  identity.LastName,
		"ministry":   identity.Ministry,
		"network":    identity.Network,
		"email":      identity.Email,
		"phone":      identity.Phone,
	}
}

// PocketBaseRESTIdentityRepository implements IdentityRepository
type PocketBaseRESTIdentityRepository struct {
	client *pocketBaseClient
}

// NewPocketBaseRESTIdentityRepository creates repository
func NewPocketBaseRESTIdentityRepository(baseURL, authToken string, logger *slog.Logger) *PocketBaseRESTIdentityRepository {
	return &PocketBaseRESTIdentityRepository{client: newPocketBaseClient(baseURL, authToken, logger)}
}

func (r *PocketBaseRESTIdentityRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

func (r *PocketBaseRESTIdentityRepository) GetByCode(ctx context.Context, code string) (*models.Identity, error) {
	query := url.Values{}
	query.Set("filter", "code="+quoteFilter(code))
	query.Set("perPage", "1")
	query.Set("skipTotal", "1")

	var result listResponse[identityRecord]
	if err := r.client.do(ctx, http.MethodGet, recordsPath(identitiesCollection, query), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, ErrNotFound
	}
	return result.Items[0].toModel(), nil
}

func (r *PocketBaseRESTIdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	data := identityPayload(identity)
	data["code"] = identity.Code

	// PocketBase assigns its own record ids
	var created identityRecord
	if err := r.client.do(ctx, http.MethodPost, recordsPath(identitiesCollection, nil), data, &created); err != nil {
		if pbErr, ok := err.(*pocketBaseError); ok && pbErr.notUnique() {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}
	identity.ID = created.ID
	identity.CreatedAt = parsePocketBaseTime(created.Created)
	identity.UpdatedAt = parsePocketBaseTime(created.Updated)
	return nil
}

func (r *PocketBaseRESTIdentityRepository) Update(ctx context.Context, identity *models.Identity) error {
	path := fmt.Sprintf("/api/collections/%s/records/%s", identitiesCollection, url.PathEscape(identity.ID))
	if err := r.client.do(ctx, http.MethodPatch, path, identityPayload(identity), nil); err != nil {
		if pbErr, ok := err.(*pocketBaseError); ok && pbErr.Status == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update identity: %w", err)
	}
	return nil
}

func (r *PocketBaseRESTIdentityRepository) Count(ctx context.Context) (int64, error) {
	query := url.Values{}
	query.Set("perPage", "1")
	query.Set("fields", "id")

	var result listResponse[struct{}]
	if err := r.client.do(ctx, http.MethodGet, recordsPath(identitiesCollection, query), nil, &result); err != nil {
		return 0, fmt.Errorf("failed to count identities: %w", err)
	}
	return int64(result.TotalItems), nil
}

type attendanceRecord struct {
	ID         string `json:"id"`
	Identity   string `json:"identity"`
	ServiceDay string `json:"service_day"`
	RecordedAt string `json:"recorded_at"`
	Station    string `json:"station"`
	Expand     struct {
		Identity *identityRecord `json:"identity"`
	} `json:"expand"`
}

// PocketBaseRESTAttendanceRepository implements AttendanceRepository
type PocketBaseRESTAttendanceRepository struct {
	client *pocketBaseClient
}

// NewPocketBaseRESTAttendanceRepository creates repository
func NewPocketBaseRESTAttendanceRepository(baseURL, authToken string, logger *slog.Logger) *PocketBaseRESTAttendanceRepository {
	return &PocketBaseRESTAttendanceRepository{client: newPocketBaseClient(baseURL, authToken, logger)}
}

func (r *PocketBaseRESTAttendanceRepository) ExistsForDay(ctx context.Context, identityID, serviceDay string) (bool, error) {
	query := url.Values{}
	query.Set("filter", fmt.Sprintf("identity=%s && service_day=%s", quoteFilter(identityID), quoteFilter(serviceDay)))
	query.Set("perPage", "1")
	query.Set("skipTotal", "1")

	var result listResponse[attendanceRecord]
	if err := r.client.do(ctx, http.MethodGet, recordsPath(attendanceCollection, query), nil, &result); err != nil {
		return false, fmt.Errorf("failed to check attendance: %w", err)
	}
	return len(result.Items) > 0, nil
}

func (r *PocketBaseRESTAttendanceRepository) Create(ctx context.Context, event *models.AttendanceEvent) error {
	data := map[string]any{
		"identity":    event.IdentityID,
		"service_day": event.ServiceDay,
		"recorded_at": event.RecordedAt.UTC().Format(time.RFC3339),
		"station":     event.Station,
	}

	var created attendanceRecord
	if err := r.client.do(ctx, http.MethodPost, recordsPath(attendanceCollection, nil), data, &created); err != nil {
		if pbErr, ok := err.(*pocketBaseError); ok && pbErr.notUnique() {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create attendance: %w", err)
	}
	event.ID = created.ID
	return nil
}

func (r *PocketBaseRESTAttendanceRepository) ListByDay(ctx context.Context, serviceDay string) ([]models.Attendee, error) {
	attendees := []models.Attendee{}
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("filter", "service_day="+quoteFilter(serviceDay))
		query.Set("expand", "identity")
		query.Set("sort", "-recorded_at")
		query.Set("perPage", fmt.Sprint(pocketBasePerPage))
		query.Set("page", fmt.Sprint(page))

		var result listResponse[attendanceRecord]
		if err := r.client.do(ctx, http.MethodGet, recordsPath(attendanceCollection, query), nil, &result); err != nil {
			return nil, fmt.Errorf("failed to list attendees: %w", err)
		}
		for _, item := range result.Items {
			attendee := models.Attendee{
				IdentityID: item.Identity,
				RecordedAt: parsePocketBaseTime(item.RecordedAt),
				Station:    item.Station,
			}
			if ident := item.Expand.Identity; ident != nil {
				attendee.Code = ident.Code
				attendee.FirstName = ident.FirstName
				attendee.LastName = ident.LastName
				attendee.Ministry = ident.Ministry
				attendee.Network = ident.Network
			}
			attendees = append(attendees, attendee)
		}
		if page >= result.TotalPages || len(result.Items) == 0 {
			break
		}
	}
	return attendees, nil
}
