package financing

import "context"

// Store is the persistence boundary for applications and schedules.
// Implementations must return copies safe for the caller to mutate, and
// resolve not-found as ErrApplicationNotFound / ErrScheduleNotFound.
type Store interface {
	SaveApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, id ApplicationID) (*Application, error)
	ListApplications(ctx context.Context) ([]*Application, error)

	SaveSchedule(ctx context.Context, schedule *Schedule) error
	GetSchedule(ctx context.Context, id ScheduleID) (*Schedule, error)
	ListSchedules(ctx context.Context) ([]*Schedule, error)

	Close() error
}
