package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
