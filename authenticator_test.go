package jobtracker_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobtracker "github.com/goliatone/go-jobtracker"
)

func newTestServices(t *testing.T, sink jobtracker.ActivitySink) *jobtracker.Services {
	t.Helper()

	opts := []jobtracker.ServicesOption{
		jobtracker.WithServicesClock(fixedClock(testNow)),
		jobtracker.WithServicesLogger(jobtracker.NopLogger()),
	}
	if sink != nil {
		opts = append(opts, jobtracker.WithServicesActivitySink(sink))
	}
	return jobtracker.NewServices(newTestDB(t), newTestConfig(), opts...)
}

func TestAuthenticator_RegisterAndLogin(t *testing.T) {
	sink := &capturingSink{}
	svc := newTestServices(t, sink)
	ctx := context.Background()

	user, err := svc.Auth.Register(ctx, jobtracker.RegisterUserMessage{
		Email:    " Alice@Example.com ",
		Password: "Passw0rd1",
		FullName: "Alice Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice Doe", user.FullName)
	assert.Equal(t, jobtracker.RoleUser, user.Role)
	assert.NotEqual(t, "Passw0rd1", user.PasswordHash)

	token, err := svc.Auth.Login(ctx, "alice@example.com", "Passw0rd1")
	require.NoError(t, err)

	userID, err := svc.Auth.TokenService().Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), userID)

	current, err := svc.Auth.CurrentUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, current.Email)

	assert.Equal(t, []jobtracker.ActivityEventType{
		jobtracker.ActivityEventUserRegistered,
		jobtracker.ActivityEventLoginSuccess,
	}, sink.types())
}

func TestAuthenticator_RegisterRejections(t *testing.T) {
	svc := newTestServices(t, nil)
	ctx := context.Background()

	_, err := svc.Auth.Register(ctx, jobtracker.RegisterUserMessage{Email: "alice@example.com", Password: "Passw0rd1"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		msg      jobtracker.RegisterUserMessage
		textCode string
	}{
		{
			name:     "weak password",
			msg:      jobtracker.RegisterUserMessage{Email: "bob@example.com", Password: "abc123"},
			textCode: jobtracker.TextCodeWeakPassword,
		},
		{
			name: "invalid email",
			msg:  jobtracker.RegisterUserMessage{Email: "not-an-email", Password: "Passw0rd1"},
		},
		{
			name:     "duplicate email in another case",
			msg:      jobtracker.RegisterUserMessage{Email: "ALICE@example.com", Password: "Passw0rd1"},
			textCode: jobtracker.TextCodeEmailRegistered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Auth.Register(ctx, tt.msg)
			require.Error(t, err)

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, 400, jobtracker.StatusCode(richErr))
			if tt.textCode != "" {
				assert.Equal(t, tt.textCode, richErr.TextCode)
			}
		})
	}
}

func TestAuthenticator_LoginFailureEmitsEvent(t *testing.T) {
	sink := &capturingSink{}
	svc := newTestServices(t, sink)
	ctx := context.Background()

	_, err := svc.Auth.Login(ctx, "ghost@example.com", "Passw0rd1")
	require.Error(t, err)
	assert.True(t, goerrors.IsAuth(err))

	require.Len(t, sink.events, 1)
	assert.Equal(t, jobtracker.ActivityEventLoginFailure, sink.events[0].EventType)
	assert.Empty(t, sink.events[0].UserID)
	assert.Equal(t, "ghost@example.com", sink.events[0].Metadata["identifier"])
}

func TestAuthenticator_DeleteAccountCascades(t *testing.T) {
	sink := &capturingSink{}
	db := newTestDB(t)
	svc := jobtracker.NewServices(db, newTestConfig(),
		jobtracker.WithServicesClock(fixedClock(testNow)),
		jobtracker.WithServicesLogger(jobtracker.NopLogger()),
		jobtracker.WithServicesActivitySink(sink),
	)
	ctx := context.Background()

	user, err := svc.Auth.Register(ctx, jobtracker.RegisterUserMessage{Email: "alice@example.com", Password: "Passw0rd1"})
	require.NoError(t, err)
	userID := user.ID.String()

	app, err := svc.Applications.Create(ctx, userID, jobtracker.ApplicationInput{
		CompanyName: "Acme",
		JobTitle:    "Engineer",
		DateApplied: mustDate(t, "2024-01-10"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Auth.DeleteAccount(ctx, userID))

	_, err = svc.Auth.CurrentUser(ctx, userID)
	require.Error(t, err)
	assert.True(t, goerrors.IsAuth(err), "a token for a deleted user is no longer valid")

	remaining, err := db.NewSelect().Model((*jobtracker.Application)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	_, err = svc.Repo.Applications().Get(ctx, userID, app.ID.String())
	assert.True(t, goerrors.IsNotFound(err))

	err = svc.Auth.DeleteAccount(ctx, userID)
	assert.True(t, goerrors.IsNotFound(err))

	assert.Contains(t, sink.types(), jobtracker.ActivityEventAccountDeleted)

	_, err = svc.Auth.Register(ctx, jobtracker.RegisterUserMessage{Email: "alice@example.com", Password: "Passw0rd1"})
	assert.NoError(t, err, "the email is free again once the account is gone")
}
