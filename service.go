package jobtracker

import (
	"context"
)

// ApplicationService wraps the application store with activity events.
type ApplicationService struct {
	apps         Applications
	statuses     StatusStateMachine
	logger       Logger
	activitySink ActivitySink
	clock        Clock
}

// NewApplicationService creates a service over apps
func NewApplicationService(apps Applications) *ApplicationService {
	s := &ApplicationService{
		apps:         apps,
		logger:       NopLogger(),
		activitySink: noopActivitySink{},
	}
	s.rebuildStateMachine()
	return s
}

func (s *ApplicationService) rebuildStateMachine() {
	s.statuses = NewStatusStateMachine(s.apps,
		WithStateMachineActivitySink(s.activitySink),
		WithStateMachineLogger(s.logger),
		WithStateMachineClock(s.clock),
	)
}

func (s *ApplicationService) WithLogger(logger Logger) *ApplicationService {
	s.logger = resolveLogger("jobtracker.applications", logger)
	s.rebuildStateMachine()
	return s
}

func (s *ApplicationService) WithActivitySink(sink ActivitySink) *ApplicationService {
	s.activitySink = normalizeActivitySink(sink)
	s.rebuildStateMachine()
	return s
}

func (s *ApplicationService) WithClock(clock Clock) *ApplicationService {
	s.clock = clock
	s.rebuildStateMachine()
	return s
}

func (s *ApplicationService) List(ctx context.Context, userID string, filter ListFilter) ([]*Application, error) {
	return s.apps.List(ctx, userID, filter)
}

func (s *ApplicationService) Get(ctx context.Context, userID, id string) (*Application, error) {
	return s.apps.Get(ctx, userID, id)
}

func (s *ApplicationService) Create(ctx context.Context, userID string, input ApplicationInput) (*Application, error) {
	app, err := s.apps.Create(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEvent{
		EventType:     ActivityEventApplicationCreated,
		UserID:        userID,
		ApplicationID: app.ID.String(),
		ToStatus:      app.Status,
	})
	return app, nil
}

// Update applies patch. A status change goes through the state machine so
// transition hooks run and the change is reported as its own event; the
// remaining fields are written afterwards as a regular update.
func (s *ApplicationService) Update(ctx context.Context, userID, id string, patch ApplicationPatch, opts ...TransitionOption) (*Application, error) {
	patch = patch.normalized()
	if err := patch.Validate(Today(s.clock)); err != nil {
		return nil, err
	}

	if patch.Status == nil {
		return s.update(ctx, userID, id, patch)
	}

	target := *patch.Status
	patch.Status = nil

	app, err := s.statuses.Transition(ctx, userID, id, target, opts...)
	if err != nil {
		return nil, err
	}

	if patch.IsEmpty() {
		return app, nil
	}
	return s.update(ctx, userID, id, patch)
}

func (s *ApplicationService) update(ctx context.Context, userID, id string, patch ApplicationPatch) (*Application, error) {
	app, err := s.apps.Update(ctx, userID, id, patch)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEvent{
		EventType:     ActivityEventApplicationUpdated,
		UserID:        userID,
		ApplicationID: app.ID.String(),
	})
	return app, nil
}

// UpdateStatus is the status-only quick update
func (s *ApplicationService) UpdateStatus(ctx context.Context, userID, id string, status ApplicationStatus, opts ...TransitionOption) (*Application, error) {
	return s.statuses.Transition(ctx, userID, id, status, opts...)
}

func (s *ApplicationService) ToggleArchive(ctx context.Context, userID, id string) (*Application, error) {
	app, err := s.apps.ToggleArchive(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEvent{
		EventType:     ActivityEventApplicationArchived,
		UserID:        userID,
		ApplicationID: app.ID.String(),
		Metadata:      map[string]any{"is_archived": app.IsArchived},
	})
	return app, nil
}

func (s *ApplicationService) Delete(ctx context.Context, userID, id string) error {
	if err := s.apps.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.emit(ctx, ActivityEvent{
		EventType:     ActivityEventApplicationDeleted,
		UserID:        userID,
		ApplicationID: id,
	})
	return nil
}

func (s *ApplicationService) emit(ctx context.Context, event ActivityEvent) {
	emitActivity(ctx, s.activitySink, s.logger, s.clock, event)
}
