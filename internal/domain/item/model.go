package item

import (
	"errors"
	"time"
)

type Status string

const (
	StatusNew       Status = "NEW"
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
)

// ErrNotFound is returned by stores when no item has the requested id.
var ErrNotFound = errors.New("item not found")

type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MarkProcessed overwrites the status unconditionally. Calling it on an
// already processed item leaves it unchanged.
func (i *Item) MarkProcessed() {
	i.Status = StatusProcessed
}
