package common

import (
	"github.com/google/uuid"
)

// NewMacroID generates a macro analysis ID. Format: mac_<uuid>
func NewMacroID() string {
	return "mac_" + uuid.New().String()
}

// NewNotificationID generates a notification ID. Format: ntf_<uuid>
func NewNotificationID() string {
	return "ntf_" + uuid.New().String()
}

// NewSubscriberID generates a subscriber ID. Format: sub_<uuid>
func NewSubscriberID() string {
	return "sub_" + uuid.New().String()
}
