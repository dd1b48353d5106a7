package http

import (
	"time"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
)

// CreateConnectionRequest registers a remote property.
type CreateConnectionRequest struct {
	ProjectID     string `json:"project_id" validate:"required"`
	Provider      string `json:"provider" validate:"omitempty,oneof=channex"`
	PropertyID    string `json:"property_id" validate:"required"`
	GroupID       string `json:"group_id"`
	APIKey        string `json:"api_key" validate:"required"`
	WebhookSecret string `json:"webhook_secret" validate:"required,min=16"`
	WebhookURL    string `json:"webhook_url" validate:"omitempty,url"`
}

// CreateMappingRequest links an internal unit to a remote room type and rate plan.
type CreateMappingRequest struct {
	UnitID     string `json:"unit_id" validate:"required"`
	RoomTypeID string `json:"room_type_id" validate:"required"`
	RatePlanID string `json:"rate_plan_id"`
}

// EnqueueRequest schedules an outbound push for every active mapping of a unit.
type EnqueueRequest struct {
	EventType string `json:"event_type" validate:"required,oneof=price_update avail_update full_sync"`
	UnitID    string `json:"unit_id" validate:"required"`
	DateFrom  string `json:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo    string `json:"date_to" validate:"omitempty,datetime=2006-01-02"`
}

// ListResponse wraps a page of rows.
type ListResponse struct {
	Data       interface{}            `json:"data"`
	Pagination *entity.PaginationMeta `json:"pagination"`
}

func parseOptionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil
	}
	return &t
}
