package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"clinic-sync/core/constants"
	"clinic-sync/core/errors"
	"clinic-sync/core/logger"
)

// TokenSource supplies a valid access token for each request. The credential
// vault implements it; the client never stores tokens itself.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (string, *errors.AppError)
}

// EventDateTime is Google's date-time wrapper. Only the timed form is used;
// all-day events do not occur in this system.
type EventDateTime struct {
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// ExtendedProperties carries the provenance tag that marks an event as
// originated by this system.
type ExtendedProperties struct {
	Private map[string]string `json:"private,omitempty"`
}

type Event struct {
	ID                 string              `json:"id,omitempty"`
	Status             string              `json:"status,omitempty"`
	Summary            string              `json:"summary,omitempty"`
	Description        string              `json:"description,omitempty"`
	ColorID            string              `json:"colorId,omitempty"`
	Start              *EventDateTime      `json:"start,omitempty"`
	End                *EventDateTime      `json:"end,omitempty"`
	Updated            string              `json:"updated,omitempty"`
	ExtendedProperties *ExtendedProperties `json:"extendedProperties,omitempty"`
}

// ProvenanceAppointmentID returns the appointment id embedded in the event's
// private properties, or "" for events this system did not create.
func (e *Event) ProvenanceAppointmentID() string {
	if e.ExtendedProperties == nil || e.ExtendedProperties.Private == nil {
		return ""
	}
	if e.ExtendedProperties.Private[constants.ProvenanceSourceKey] != constants.ProvenanceSourceMarker {
		return ""
	}
	return e.ExtendedProperties.Private[constants.ProvenancePropertyKey]
}

type EventList struct {
	Items         []Event `json:"items"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// WatchRequest registers a push notification channel on the primary calendar.
type WatchRequest struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Address string `json:"address"`
	Token   string `json:"token,omitempty"`
	Params  struct {
		TTL string `json:"ttl,omitempty"`
	} `json:"params,omitempty"`
}

type WatchResponse struct {
	ID         string `json:"id"`
	ResourceID string `json:"resourceId"`
	// Expiration is milliseconds since the Unix epoch, as Google returns it.
	Expiration int64 `json:"expiration,string"`
}

// StopRequest closes a push channel.
type StopRequest struct {
	ID         string `json:"id"`
	ResourceID string `json:"resourceId"`
}

// API is the surface of Google Calendar this system touches. Kept as an
// interface so the sync engines can run against a fake in tests.
type API interface {
	CreateEvent(ctx context.Context, event *Event) (*Event, *errors.AppError)
	UpdateEvent(ctx context.Context, eventID string, event *Event) (*Event, *errors.AppError)
	// DeleteEvent treats 404 and 410 as success: the event is gone either way.
	DeleteEvent(ctx context.Context, eventID string) *errors.AppError
	GetEvent(ctx context.Context, eventID string) (*Event, *errors.AppError)
	// ListEventsUpdatedSince pages through events changed after the cursor.
	ListEventsUpdatedSince(ctx context.Context, updatedMin time.Time, pageToken string) (*EventList, *errors.AppError)
	Watch(ctx context.Context, req *WatchRequest) (*WatchResponse, *errors.AppError)
	StopChannel(ctx context.Context, channelID, resourceID string) *errors.AppError
}

type googleClient struct {
	tokens     TokenSource
	httpClient *http.Client

	// Overridable for tests; default to Google's production endpoints.
	eventsBaseURL  string
	channelStopURL string
}

func NewGoogleClient(tokens TokenSource) API {
	return &googleClient{
		tokens:         tokens,
		httpClient:     &http.Client{Timeout: constants.GoogleAPITimeout},
		eventsBaseURL:  constants.GoogleEventsAPI,
		channelStopURL: constants.GoogleChannelsStopAPI,
	}
}

func (c *googleClient) CreateEvent(ctx context.Context, event *Event) (*Event, *errors.AppError) {
	var created Event
	if appErr := c.do(ctx, http.MethodPost, c.eventsBaseURL, event, &created); appErr != nil {
		return nil, appErr
	}
	return &created, nil
}

func (c *googleClient) UpdateEvent(ctx context.Context, eventID string, event *Event) (*Event, *errors.AppError) {
	var updated Event
	endpoint := c.eventsBaseURL + "/" + url.PathEscape(eventID)
	if appErr := c.do(ctx, http.MethodPatch, endpoint, event, &updated); appErr != nil {
		return nil, appErr
	}
	return &updated, nil
}

func (c *googleClient) DeleteEvent(ctx context.Context, eventID string) *errors.AppError {
	endpoint := c.eventsBaseURL + "/" + url.PathEscape(eventID)
	appErr := c.do(ctx, http.MethodDelete, endpoint, nil, nil)
	if appErr != nil {
		status := errors.RemoteStatus(appErr)
		if status == http.StatusNotFound || status == http.StatusGone {
			return nil
		}
	}
	return appErr
}

func (c *googleClient) GetEvent(ctx context.Context, eventID string) (*Event, *errors.AppError) {
	var event Event
	endpoint := c.eventsBaseURL + "/" + url.PathEscape(eventID)
	if appErr := c.do(ctx, http.MethodGet, endpoint, nil, &event); appErr != nil {
		return nil, appErr
	}
	return &event, nil
}

func (c *googleClient) ListEventsUpdatedSince(ctx context.Context, updatedMin time.Time, pageToken string) (*EventList, *errors.AppError) {
	params := url.Values{}
	params.Set("updatedMin", updatedMin.UTC().Format(time.RFC3339))
	params.Set("showDeleted", "true")
	params.Set("singleEvents", "true")
	params.Set("maxResults", "250")
	params.Set("orderBy", "updated")
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var list EventList
	endpoint := c.eventsBaseURL + "?" + params.Encode()
	if appErr := c.do(ctx, http.MethodGet, endpoint, nil, &list); appErr != nil {
		return nil, appErr
	}
	return &list, nil
}

func (c *googleClient) Watch(ctx context.Context, req *WatchRequest) (*WatchResponse, *errors.AppError) {
	var resp WatchResponse
	if appErr := c.do(ctx, http.MethodPost, c.eventsBaseURL+"/watch", req, &resp); appErr != nil {
		return nil, appErr
	}
	return &resp, nil
}

func (c *googleClient) StopChannel(ctx context.Context, channelID, resourceID string) *errors.AppError {
	req := &StopRequest{ID: channelID, ResourceID: resourceID}
	appErr := c.do(ctx, http.MethodPost, c.channelStopURL, req, nil)
	if appErr != nil && errors.RemoteStatus(appErr) == http.StatusNotFound {
		// Channel already expired on Google's side.
		return nil
	}
	return appErr
}

// do performs one authenticated request. Transport failures classify as
// network errors, non-2xx responses as remote API errors carrying the status.
func (c *googleClient) do(ctx context.Context, method, endpoint string, body, out any) *errors.AppError {
	token, appErr := c.tokens.GetAccessToken(ctx)
	if appErr != nil {
		return appErr
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "failed to encode request body", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("CalendarClient:Do:TransportError", "method", method, "error", err)
		return errors.NewAppError(errors.ErrNetwork, "failed to reach Google Calendar", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logger.Error("CalendarClient:Do:RemoteError",
			"method", method,
			"status", resp.StatusCode,
			"body", string(detail),
		)
		return errors.NewAPIError(resp.StatusCode, remoteErrorMessage(resp.StatusCode, detail))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.NewAppError(errors.ErrRemoteAPI, "failed to decode Google Calendar response", err)
		}
	}
	return nil
}

// remoteErrorMessage pulls Google's error message out of the response body,
// falling back to the bare status when the body is not the expected shape.
func remoteErrorMessage(status int, body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Sprintf("Google Calendar returned %d: %s", status, envelope.Error.Message)
	}
	return fmt.Sprintf("Google Calendar returned %d", status)
}

// FormatDateTime renders a local date and wall-clock time as RFC3339 in the
// given location, e.g. ("2025-03-10", "14:30", America/Chicago).
func FormatDateTime(date, startTime string, loc *time.Location) (string, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+startTime, loc)
	if err != nil {
		return "", err
	}
	return t.Format(time.RFC3339), nil
}
