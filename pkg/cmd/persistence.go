package cmd

import (
	"fmt"

	"github.com/flowdeck/flowdeck/pkg/persistence"
	"github.com/flowdeck/flowdeck/pkg/persistence/file"
	"github.com/flowdeck/flowdeck/pkg/persistence/redis"
)

// NewPersistence selects a persistence backend from the database URL scheme.
// Redis URLs get the redis store; anything else is treated as a file path.
func NewPersistence(databaseURL string) (persistence.Persistence, error) {
	if redis.Supported(databaseURL) {
		store, err := redis.NewPersistence(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		return store, nil
	}

	return file.NewPersistence(databaseURL), nil
}
