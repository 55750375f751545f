package jobtracker

import (
	"context"
	"maps"
)

// TransitionMetadata captures extra context for a status change.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	UserID      string
	Application *Application
	From        ApplicationStatus
	To          ApplicationStatus
	Meta        TransitionMetadata
}

// TransitionHook is executed before or after a transition. An error from
// a before hook aborts the change.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// StatusStateMachine moves applications between statuses. The status set
// is a flat enumeration: every status may move to every other status,
// backwards included. Only membership is validated.
type StatusStateMachine interface {
	Transition(ctx context.Context, userID, id string, target ApplicationStatus, opts ...TransitionOption) (*Application, error)
	CanTransition(from, to ApplicationStatus) bool
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*statusStateMachine)

// WithStateMachineActivitySink sets the ActivitySink used to publish status changes.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *statusStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *statusStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock Clock) StateMachineOption {
	return func(sm *statusStateMachine) {
		sm.clock = clock
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		maps.Copy(opts.metadata.Metadata, metadata)
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewStatusStateMachine returns the default implementation backed by apps.
func NewStatusStateMachine(apps Applications, opts ...StateMachineOption) StatusStateMachine {
	sm := &statusStateMachine{
		apps:         apps,
		activitySink: noopActivitySink{},
		logger:       NopLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type statusStateMachine struct {
	apps         Applications
	activitySink ActivitySink
	logger       Logger
	clock        Clock
}

type transitionOptions struct {
	metadata    TransitionMetadata
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: maps.Clone(o.metadata.Metadata),
	}
}

// Transition sets the application's status to target. Setting the current
// status again is a no-op and records nothing.
func (sm *statusStateMachine) Transition(ctx context.Context, userID, id string, target ApplicationStatus, opts ...TransitionOption) (*Application, error) {
	to, err := ParseStatus(string(target))
	if err != nil {
		return nil, err
	}

	app, err := sm.apps.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	from := app.Status
	if from == to {
		return app, nil
	}

	if !sm.CanTransition(from, to) {
		return nil, fail(ErrInvalidStatus, map[string]any{"from": from, "to": to})
	}

	options := sm.buildTransitionOptions(opts...)
	tc := TransitionContext{
		UserID:      userID,
		Application: app,
		From:        from,
		To:          to,
		Meta:        options.cloneMetadata(),
	}

	if err := runHooks(ctx, options.beforeHooks, tc); err != nil {
		return nil, err
	}

	updated, err := sm.apps.Update(ctx, userID, id, ApplicationPatch{Status: &to})
	if err != nil {
		return nil, err
	}
	tc.Application = updated

	if err := runHooks(ctx, options.afterHooks, tc); err != nil {
		return nil, err
	}

	emitActivity(ctx, sm.activitySink, sm.logger, sm.clock, ActivityEvent{
		EventType:     ActivityEventApplicationStatus,
		UserID:        userID,
		ApplicationID: updated.ID.String(),
		FromStatus:    from,
		ToStatus:      to,
		Metadata:      transitionMetadata(tc.Meta),
	})

	return updated, nil
}

// CanTransition only rejects statuses outside the enumeration
func (sm *statusStateMachine) CanTransition(from, to ApplicationStatus) bool {
	return from.Valid() && to.Valid()
}

func (sm *statusStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func runHooks(ctx context.Context, hooks []TransitionHook, tc TransitionContext) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, tc); err != nil {
			return err
		}
	}
	return nil
}

func transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	maps.Copy(result, meta.Metadata)
	return result
}
