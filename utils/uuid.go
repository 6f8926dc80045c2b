package utils

import (
	"github.com/segmentio/ksuid"
	uuid "github.com/satori/go.uuid"
)

// UUID returns a random v4 uuid, used for payload ids.
func UUID() string {
	return uuid.NewV4().String()
}

func IsValidUUID(id string) bool {
	_, err := uuid.FromString(id)
	return err == nil
}

// KSUID returns a time sortable id, used for stored records.
func KSUID() string {
	return ksuid.New().String()
}
