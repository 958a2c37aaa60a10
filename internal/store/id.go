package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const idMaxAttempts = 20

var objectIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// GenerateID returns a new object id: a UUIDv7 in lowercase hex without
// dashes, so ids sort by creation time. It retries on collisions using the
// provided exists function.
func GenerateID(exists func(string) (bool, error)) (string, error) {
	for i := 0; i < idMaxAttempts; i++ {
		u, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		id := strings.ReplaceAll(u.String(), "-", "")
		if exists == nil {
			return id, nil
		}
		ok, err := exists(id)
		if err != nil {
			return "", err
		}
		if !ok {
			return id, nil
		}
	}

	return "", fmt.Errorf("unable to generate unique id")
}

// ValidateID reports whether id has the canonical object id shape.
func ValidateID(id string) error {
	if !objectIDPattern.MatchString(id) {
		return fmt.Errorf("invalid object id: %q", id)
	}
	return nil
}
