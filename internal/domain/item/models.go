package item

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrItemNotFound     = errors.New("item not found")
	ErrInvalidItemID    = errors.New("external item id is required")
	ErrAccessTokenEmpty = errors.New("access token is required")
	ErrInvalidUserID    = errors.New("valid user ID is required")
)

// SyncError is the last failure recorded on an item.
type SyncError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Item is a linked aggregator credential for one institution connection.
type Item struct {
	ID              string     `json:"id"`
	ExternalID      string     `json:"itemId"`
	UserID          int64      `json:"-"`
	AccessToken     string     `json:"-"`
	InstitutionID   string     `json:"institutionId,omitempty"`
	InstitutionName string     `json:"institutionName"`
	LastSyncedAt    *time.Time `json:"lastSuccessfulUpdate"`
	Error           *SyncError `json:"error"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NeedsAttention reports whether the last sync left an error on the item.
func (i *Item) NeedsAttention() bool {
	return i.Error != nil
}

// UpsertParams identifies an item by its external id.
type UpsertParams struct {
	ExternalID      string
	UserID          int64
	AccessToken     string
	InstitutionID   string
	InstitutionName string
}

func (p UpsertParams) Validate() error {
	if p.ExternalID == "" {
		return ErrInvalidItemID
	}
	if p.UserID <= 0 {
		return ErrInvalidUserID
	}
	if p.AccessToken == "" {
		return ErrAccessTokenEmpty
	}
	return nil
}
