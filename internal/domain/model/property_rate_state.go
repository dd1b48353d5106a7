package model

import (
	"math"
	"time"

	"gorm.io/gorm"
)

// Bucket selects one of the two per-property token buckets.
type Bucket string

const (
	BucketPrice        Bucket = "price"
	BucketAvailability Bucket = "availability"
)

// BucketPolicy holds the token bucket parameters shared by both buckets.
type BucketPolicy struct {
	Capacity        float64
	RefillPerSecond float64
	BasePause       time.Duration
	MaxPause        time.Duration
}

// PropertyRateState is the shared limiter row for one remote property.
// It must only be mutated while the row is locked.
type PropertyRateState struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	PropertyID      string     `gorm:"size:100;not null;uniqueIndex" json:"property_id"`
	PriceTokens     float64    `gorm:"not null" json:"price_tokens"`
	PriceRefilledAt time.Time  `gorm:"not null" json:"price_refilled_at"`
	AvailTokens     float64    `gorm:"not null" json:"avail_tokens"`
	AvailRefilledAt time.Time  `gorm:"not null" json:"avail_refilled_at"`
	PausedUntil     *time.Time `json:"paused_until,omitempty"`
	PauseCount      int        `gorm:"not null;default:0" json:"pause_count"`
	Last429At       *time.Time `gorm:"column:last_429_at" json:"last_429_at,omitempty"`
	TotalRequests   int64      `gorm:"not null;default:0" json:"total_requests"`
	Total429s       int64      `gorm:"column:total_429s;not null;default:0" json:"total_429s"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (PropertyRateState) TableName() string {
	return "property_rate_states"
}

func (s *PropertyRateState) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return nil
}

// NewPropertyRateState returns a row with both buckets full.
func NewPropertyRateState(propertyID string, p BucketPolicy, now time.Time) *PropertyRateState {
	return &PropertyRateState{
		PropertyID:      propertyID,
		PriceTokens:     p.Capacity,
		PriceRefilledAt: now,
		AvailTokens:     p.Capacity,
		AvailRefilledAt: now,
	}
}

func (s *PropertyRateState) bucket(b Bucket) (*float64, *time.Time) {
	if b == BucketPrice {
		return &s.PriceTokens, &s.PriceRefilledAt
	}
	return &s.AvailTokens, &s.AvailRefilledAt
}

// Tokens returns the current token count of b without refilling.
func (s *PropertyRateState) Tokens(b Bucket) float64 {
	tokens, _ := s.bucket(b)
	return *tokens
}

// Refill adds the tokens earned since the last refill, capped at capacity.
func (s *PropertyRateState) Refill(b Bucket, p BucketPolicy, now time.Time) {
	tokens, refilledAt := s.bucket(b)
	elapsed := now.Sub(*refilledAt).Seconds()
	if elapsed <= 0 {
		return
	}
	*tokens = math.Min(p.Capacity, *tokens+elapsed*p.RefillPerSecond)
	*refilledAt = now
}

// IsPaused reports whether a 429 pause is still in effect.
func (s *PropertyRateState) IsPaused(now time.Time) bool {
	return s.PausedUntil != nil && s.PausedUntil.After(now)
}

// TryConsume refills b and takes one token. When denied it returns how long
// the caller should wait before the next attempt can succeed.
func (s *PropertyRateState) TryConsume(b Bucket, p BucketPolicy, now time.Time) (bool, time.Duration) {
	s.Refill(b, p, now)
	if s.IsPaused(now) {
		return false, s.PausedUntil.Sub(now)
	}

	tokens, _ := s.bucket(b)
	if *tokens >= 1 {
		*tokens--
		s.TotalRequests++
		return true, 0
	}

	wait := time.Duration((1 - *tokens) / p.RefillPerSecond * float64(time.Second))
	return false, wait
}

// Pause records a 429. A positive hint wins over the exponential penalty.
func (s *PropertyRateState) Pause(p BucketPolicy, hint time.Duration, now time.Time) time.Time {
	window := hint
	if window <= 0 {
		window = p.BasePause
		for i := 0; i < s.PauseCount && window < p.MaxPause; i++ {
			window *= 2
		}
		if window > p.MaxPause {
			window = p.MaxPause
		}
	}

	until := now.Add(window)
	s.PausedUntil = &until
	s.PauseCount++
	s.Total429s++
	s.Last429At = &now
	return until
}

// Recover decrements the pause counter once the pause window has passed.
func (s *PropertyRateState) Recover(now time.Time) bool {
	if s.PausedUntil == nil || s.PausedUntil.After(now) {
		return false
	}
	s.PausedUntil = nil
	if s.PauseCount > 0 {
		s.PauseCount--
	}
	return true
}
