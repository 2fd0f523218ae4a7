package dto

// CreateAppointmentRequest creates a new visit.
type CreateAppointmentRequest struct {
	Date            string   `json:"date" validate:"required"`       // YYYY-MM-DD
	StartTime       string   `json:"start_time" validate:"required"` // HH:MM
	DurationMinutes int      `json:"duration_minutes"`
	Status          string   `json:"status"`
	ClientName      string   `json:"client_name" validate:"required"`
	PetName         string   `json:"pet_name" validate:"required"`
	ServiceNames    []string `json:"service_names"`
}

// UpdateAppointmentRequest carries a full replacement of the editable fields.
type UpdateAppointmentRequest struct {
	Date            string   `json:"date"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Status          string   `json:"status"`
	ClientName      string   `json:"client_name"`
	PetName         string   `json:"pet_name"`
	ServiceNames    []string `json:"service_names"`
}

// AppointmentResponse is the API view of a visit, including its sync state.
type AppointmentResponse struct {
	ID              string   `json:"id"`
	Code            string   `json:"code"`
	Date            string   `json:"date"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Status          string   `json:"status"`
	ClientName      string   `json:"client_name"`
	PetName         string   `json:"pet_name"`
	ServiceNames    []string `json:"service_names"`
	RemoteDeleted   bool     `json:"remote_deleted"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	TotalItems   int                   `json:"total_items"`
}
