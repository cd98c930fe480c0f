package circulation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// Notification kinds written by the circulation core. Delivery (email, push)
// is out of scope; only the record creation is guaranteed.
const (
	NotificationTypeFine    = "Fine"
	NotificationTypeOverdue = "Overdue"
)

// ErrInvalidNotificationMeta is returned when notification metadata is not
// valid JSON.
var ErrInvalidNotificationMeta = errors.New("notification meta is not valid json")

// Notification is an outbound message record for a user. MetaJSON carries
// structured context (book id, issue id, amounts) for downstream delivery.
type Notification struct {
	NotificationID uuid.UUID
	UserID         string
	Message        string
	Type           string
	MetaJSON       []byte
	IsRead         bool
	CreatedAt      time.Time
}

// BuildNotification is the factory for Notification. It assigns a new v7 UUID
// and validates metaJSON; pass nil for metaJSON to get an empty JSON object.
func BuildNotification(userID string, message string, kind string, metaJSON []byte, createdAt time.Time) (Notification, error) {
	if metaJSON == nil {
		metaJSON = []byte("{}")
	}

	if !jsoniter.ConfigFastest.Valid(metaJSON) {
		return Notification{}, ErrInvalidNotificationMeta
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Notification{}, err
	}

	return Notification{
		NotificationID: id,
		UserID:         userID,
		Message:        message,
		Type:           kind,
		MetaJSON:       metaJSON,
		CreatedAt:      createdAt,
	}, nil
}
