package repository

import (
	"context"
	"fmt"
)

// Assessment store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// OpenAssessmentStore returns the store selected by driver.
func OpenAssessmentStore(ctx context.Context, driver, sqlitePath string) (AssessmentStore, error) {
	switch driver {
	case "", DriverMemory:
		return NewInMemoryAssessmentStore(), nil
	case DriverSQLite:
		return NewSQLiteAssessmentStore(ctx, sqlitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
