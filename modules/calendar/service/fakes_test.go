package service

import (
	"context"
	"time"

	"clinic-sync/core/errors"
	apptdto "clinic-sync/modules/appointment/dto"
	apptentity "clinic-sync/modules/appointment/entity"
	apptservice "clinic-sync/modules/appointment/service"
	"clinic-sync/modules/calendar/client"
	calentity "clinic-sync/modules/calendar/entity"
	creddto "clinic-sync/modules/credentials/dto"
	credservice "clinic-sync/modules/credentials/service"

	"github.com/google/uuid"
)

// fakeAPI records calls and serves canned responses.
type fakeAPI struct {
	createCalls []*client.Event
	updateCalls []string
	deleteCalls []string
	watchCalls  []*client.WatchRequest
	stopCalls   [][2]string

	createResult *client.Event
	createErr    *errors.AppError
	updateErr    *errors.AppError
	deleteErr    *errors.AppError
	watchResult  *client.WatchResponse
	watchErr     *errors.AppError
	stopErr      *errors.AppError
	listPages    []*client.EventList
	listErr      *errors.AppError
	listCalls    int
}

func (f *fakeAPI) CreateEvent(ctx context.Context, event *client.Event) (*client.Event, *errors.AppError) {
	f.createCalls = append(f.createCalls, event)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResult != nil {
		return f.createResult, nil
	}
	return &client.Event{ID: "ev-created"}, nil
}

func (f *fakeAPI) UpdateEvent(ctx context.Context, eventID string, event *client.Event) (*client.Event, *errors.AppError) {
	f.updateCalls = append(f.updateCalls, eventID)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return event, nil
}

func (f *fakeAPI) DeleteEvent(ctx context.Context, eventID string) *errors.AppError {
	f.deleteCalls = append(f.deleteCalls, eventID)
	return f.deleteErr
}

func (f *fakeAPI) GetEvent(ctx context.Context, eventID string) (*client.Event, *errors.AppError) {
	return nil, errors.NewAPIError(404, "not implemented in fake")
}

func (f *fakeAPI) ListEventsUpdatedSince(ctx context.Context, updatedMin time.Time, pageToken string) (*client.EventList, *errors.AppError) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.listCalls >= len(f.listPages) {
		return &client.EventList{}, nil
	}
	page := f.listPages[f.listCalls]
	f.listCalls++
	return page, nil
}

func (f *fakeAPI) Watch(ctx context.Context, req *client.WatchRequest) (*client.WatchResponse, *errors.AppError) {
	f.watchCalls = append(f.watchCalls, req)
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	if f.watchResult != nil {
		return f.watchResult, nil
	}
	return &client.WatchResponse{
		ID:         req.ID,
		ResourceID: "res-1",
		Expiration: time.Now().Add(7 * 24 * time.Hour).UnixMilli(),
	}, nil
}

func (f *fakeAPI) StopChannel(ctx context.Context, channelID, resourceID string) *errors.AppError {
	f.stopCalls = append(f.stopCalls, [2]string{channelID, resourceID})
	return f.stopErr
}

// fakeVault is a canned credential vault.
type fakeVault struct {
	connected   bool
	syncEnabled bool
}

func (f *fakeVault) BuildAuthorizationURL(ctx context.Context, actorID uuid.UUID) (string, *errors.AppError) {
	return "", nil
}
func (f *fakeVault) ExchangeCode(ctx context.Context, code, state string) *errors.AppError {
	return nil
}
func (f *fakeVault) RefreshAccessToken(ctx context.Context) *errors.AppError { return nil }
func (f *fakeVault) GetAccessToken(ctx context.Context) (string, *errors.AppError) {
	return "token", nil
}
func (f *fakeVault) IsConnected(ctx context.Context) bool           { return f.connected }
func (f *fakeVault) IsCalendarSyncEnabled(ctx context.Context) bool { return f.syncEnabled }
func (f *fakeVault) SetCalendarSyncEnabled(ctx context.Context, enabled bool) *errors.AppError {
	f.syncEnabled = enabled
	return nil
}
func (f *fakeVault) Status(ctx context.Context) (*creddto.ConnectionStatusResponse, *errors.AppError) {
	return &creddto.ConnectionStatusResponse{Connected: f.connected}, nil
}
func (f *fakeVault) Disconnect(ctx context.Context) *errors.AppError   { return nil }
func (f *fakeVault) RegisterObserver(o credservice.ConnectionObserver) {}

// fakeLinks is an in-memory sync link store.
type fakeLinks struct {
	links map[uuid.UUID]*calentity.AppointmentSyncLink
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{links: map[uuid.UUID]*calentity.AppointmentSyncLink{}}
}

func (f *fakeLinks) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*calentity.AppointmentSyncLink, error) {
	link, ok := f.links[appointmentID]
	if !ok {
		return nil, nil
	}
	copied := *link
	return &copied, nil
}

func (f *fakeLinks) Save(ctx context.Context, appointmentID uuid.UUID, eventID string, syncedAt time.Time) error {
	f.links[appointmentID] = &calentity.AppointmentSyncLink{
		AppointmentID: appointmentID,
		EventID:       eventID,
		LastSyncedAt:  &syncedAt,
	}
	return nil
}

func (f *fakeLinks) RecordError(ctx context.Context, appointmentID uuid.UUID, kind, message string, at time.Time) error {
	link, ok := f.links[appointmentID]
	if !ok {
		link = &calentity.AppointmentSyncLink{AppointmentID: appointmentID}
		f.links[appointmentID] = link
	}
	link.LastErrorKind = kind
	link.LastErrorMsg = message
	link.LastErrorAt = &at
	return nil
}

func (f *fakeLinks) TouchSyncedAt(ctx context.Context, appointmentID uuid.UUID, syncedAt time.Time) error {
	if link, ok := f.links[appointmentID]; ok {
		link.LastSyncedAt = &syncedAt
	}
	return nil
}

func (f *fakeLinks) Delete(ctx context.Context, appointmentID uuid.UUID) error {
	delete(f.links, appointmentID)
	return nil
}

// fakeGuardCache tracks loop guards in memory.
type fakeGuardCache struct {
	guards map[uuid.UUID]bool
}

func newFakeGuardCache() *fakeGuardCache {
	return &fakeGuardCache{guards: map[uuid.UUID]bool{}}
}

func (f *fakeGuardCache) SetLoopGuard(ctx context.Context, id uuid.UUID) error {
	f.guards[id] = true
	return nil
}

func (f *fakeGuardCache) ConsumeLoopGuard(ctx context.Context, id uuid.UUID) (bool, error) {
	set := f.guards[id]
	delete(f.guards, id)
	return set, nil
}

func (f *fakeGuardCache) SaveOAuthState(ctx context.Context, state string, actorID uuid.UUID) error {
	return nil
}

func (f *fakeGuardCache) ConsumeOAuthState(ctx context.Context, state string) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}

func (f *fakeGuardCache) Ping(ctx context.Context) error { return nil }

// fakeScheduler records scheduling calls.
type fakeScheduler struct {
	enqueueCalls int
	scheduledAt  []time.Time
	cancelCalls  int
}

func (f *fakeScheduler) EnqueueProcessChanges(ctx context.Context) error {
	f.enqueueCalls++
	return nil
}

func (f *fakeScheduler) ScheduleChannelRenewal(ctx context.Context, at time.Time) error {
	f.scheduledAt = append(f.scheduledAt, at)
	return nil
}

func (f *fakeScheduler) CancelChannelRenewal(ctx context.Context) error {
	f.cancelCalls++
	return nil
}

// fakeChannelRepo stores the single channel row in memory.
type fakeChannelRepo struct {
	channel *calentity.WebhookChannel
}

func (f *fakeChannelRepo) Get(ctx context.Context) (*calentity.WebhookChannel, error) {
	if f.channel == nil {
		return nil, nil
	}
	copied := *f.channel
	return &copied, nil
}

func (f *fakeChannelRepo) Save(ctx context.Context, channel *calentity.WebhookChannel) error {
	copied := *channel
	f.channel = &copied
	return nil
}

func (f *fakeChannelRepo) Delete(ctx context.Context) error {
	f.channel = nil
	return nil
}

// fakeSettings is an in-memory settings store.
type fakeSettings struct {
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]string{}}
}

func (f *fakeSettings) Get(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeSettings) Set(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeSettings) Delete(ctx context.Context, key string) error {
	delete(f.values, key)
	return nil
}

// fakeAppointments is an in-memory appointment service that records
// remote-originated calls.
type fakeAppointments struct {
	appts           map[uuid.UUID]*apptentity.Appointment
	rescheduled     []rescheduleCall
	remoteDeleted   []uuid.UUID
	rescheduleError *errors.AppError
}

type rescheduleCall struct {
	id        uuid.UUID
	date      string
	startTime string
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{appts: map[uuid.UUID]*apptentity.Appointment{}}
}

func (f *fakeAppointments) Create(ctx context.Context, req *apptdto.CreateAppointmentRequest) (*apptentity.Appointment, *errors.AppError) {
	return nil, errors.NewAppError(errors.ErrInternalServer, "not implemented in fake", nil)
}

func (f *fakeAppointments) Update(ctx context.Context, id uuid.UUID, req *apptdto.UpdateAppointmentRequest) (*apptentity.Appointment, *errors.AppError) {
	return nil, errors.NewAppError(errors.ErrInternalServer, "not implemented in fake", nil)
}

func (f *fakeAppointments) Delete(ctx context.Context, id uuid.UUID) *errors.AppError { return nil }

func (f *fakeAppointments) GetByID(ctx context.Context, id uuid.UUID) (*apptentity.Appointment, *errors.AppError) {
	appt, ok := f.appts[id]
	if !ok {
		return nil, errors.NewAppError(errors.ErrNotFound, "appointment not found", nil)
	}
	copied := *appt
	return &copied, nil
}

func (f *fakeAppointments) List(ctx context.Context, limit, offset int) ([]apptentity.Appointment, int, *errors.AppError) {
	return nil, 0, nil
}

func (f *fakeAppointments) RescheduleFromRemote(ctx context.Context, id uuid.UUID, date, startTime string) *errors.AppError {
	if f.rescheduleError != nil {
		return f.rescheduleError
	}
	f.rescheduled = append(f.rescheduled, rescheduleCall{id: id, date: date, startTime: startTime})
	if appt, ok := f.appts[id]; ok {
		appt.Date = date
		appt.StartTime = startTime
	}
	return nil
}

func (f *fakeAppointments) MarkRemoteDeleted(ctx context.Context, id uuid.UUID) *errors.AppError {
	f.remoteDeleted = append(f.remoteDeleted, id)
	if appt, ok := f.appts[id]; ok {
		appt.RemoteDeleted = true
	}
	return nil
}

func (f *fakeAppointments) RegisterSyncListener(l apptservice.SyncListener) {}
