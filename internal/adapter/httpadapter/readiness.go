package httpadapter

import (
	"context"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// AllReady combines readiness checks; the first failure wins.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	return allReady(checkers)
}

type allReady []sharedobs.ReadinessChecker

func (a allReady) CheckReadiness(ctx context.Context) error {
	for _, c := range a {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
