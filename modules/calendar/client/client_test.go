package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic-sync/core/constants"
	"clinic-sync/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct{}

func (staticTokens) GetAccessToken(ctx context.Context) (string, *errors.AppError) {
	return "test-token", nil
}

func newTestClient(serverURL string) *googleClient {
	return &googleClient{
		tokens:         staticTokens{},
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		eventsBaseURL:  serverURL + "/events",
		channelStopURL: serverURL + "/channels/stop",
	}
}

func TestCreateEventSendsAuthAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"ev-1","status":"confirmed"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	created, appErr := c.CreateEvent(context.Background(), &Event{Summary: "Rex (Jordan)"})
	require.Nil(t, appErr)
	assert.Equal(t, "ev-1", created.ID)
}

func TestDeleteEventTreatsGoneAsSuccess(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone, http.StatusNoContent} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		c := newTestClient(server.URL)
		appErr := c.DeleteEvent(context.Background(), "ev-1")
		assert.Nil(t, appErr, "status %d should be treated as success", status)
		server.Close()
	}
}

func TestDeleteEventPropagatesOtherFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	appErr := c.DeleteEvent(context.Background(), "ev-1")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrRemoteAPI, appErr.Code)
	assert.Equal(t, http.StatusForbidden, appErr.Status)
}

func TestUpdateEventClassifiesNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, appErr := c.UpdateEvent(context.Background(), "ev-gone", &Event{})
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, errors.RemoteStatus(appErr))
}

func TestTransportFailureClassifiesAsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	c := newTestClient(server.URL)
	_, appErr := c.GetEvent(context.Background(), "ev-1")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrNetwork, appErr.Code)
}

func TestListEventsPassesCursorParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2025-03-10T12:00:00Z", q.Get("updatedMin"))
		assert.Equal(t, "true", q.Get("showDeleted"))
		assert.Equal(t, "next-page", q.Get("pageToken"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"ev-1"}],"nextPageToken":""}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	cursor := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	list, appErr := c.ListEventsUpdatedSince(context.Background(), cursor, "next-page")
	require.Nil(t, appErr)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "ev-1", list.Items[0].ID)
}

func TestStopChannelIgnoresNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	assert.Nil(t, c.StopChannel(context.Background(), "ch-1", "res-1"))
}

func TestProvenanceAppointmentID(t *testing.T) {
	ours := &Event{ExtendedProperties: &ExtendedProperties{Private: map[string]string{
		constants.ProvenancePropertyKey: "abc-123",
		constants.ProvenanceSourceKey:   constants.ProvenanceSourceMarker,
	}}}
	assert.Equal(t, "abc-123", ours.ProvenanceAppointmentID())

	// Same property key but not marked as ours.
	foreign := &Event{ExtendedProperties: &ExtendedProperties{Private: map[string]string{
		constants.ProvenancePropertyKey: "abc-123",
	}}}
	assert.Empty(t, foreign.ProvenanceAppointmentID())

	assert.Empty(t, (&Event{}).ProvenanceAppointmentID())
}

func TestFormatDateTime(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	got, err := FormatDateTime("2025-03-10", "14:30", chicago)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10T14:30:00-05:00", got)

	_, err = FormatDateTime("not-a-date", "14:30", chicago)
	assert.Error(t, err)
}
