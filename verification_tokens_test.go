package rbac_test

import (
	"context"
	"testing"
	"time"

	rbac "github.com/goliatone/go-rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTP(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		code, err := rbac.GenerateOTP()
		require.NoError(t, err)
		require.Len(t, code, rbac.OTPLength)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code %q must be numeric", code)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1, "codes should not repeat every time")
}

func TestVerificationServiceIssue(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)

	user := createUserWithStatus(t, repos, "Codes@Example.com", "Sup3rSecret!", rbac.UserStatusUnverified)

	notifier := &capturingNotifier{}
	svc := rbac.NewVerificationService(repos,
		rbac.WithVerificationNotifier(notifier),
		rbac.WithVerificationURL("https://app.example.com/verify"),
	)

	record, err := svc.Issue(ctx, db, user, rbac.VerificationTypeUser)
	require.NoError(t, err)

	assert.Len(t, record.Token, rbac.OTPLength)
	assert.Equal(t, "codes@example.com", record.Email)
	assert.Equal(t, rbac.VerificationStatusUnverified, record.Status)
	assert.Equal(t, user.ID, record.UserID)
	require.NotNil(t, record.ExpiredAt)
	assert.WithinDuration(t, time.Now().Add(rbac.OTPTTL), *record.ExpiredAt, 5*time.Second)

	sent := notifier.Notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, rbac.EventSendUserVerificationToken, sent[0].Event)
	assert.Equal(t, record.Token, sent[0].Variables["token"])
	assert.Equal(t, "https://app.example.com/verify", sent[0].Variables["url"])

	t.Run("nil user", func(t *testing.T) {
		_, err := svc.Issue(ctx, db, nil, rbac.VerificationTypeUser)
		assert.Error(t, err)
	})

	t.Run("notify failure does not fail issuance", func(t *testing.T) {
		failing := rbac.NewVerificationService(repos,
			rbac.WithVerificationNotifier(&capturingNotifier{fail: assert.AnError}),
		)
		_, err := failing.Issue(ctx, db, user, rbac.VerificationTypeForgotPassword)
		assert.NoError(t, err)
	})
}

func TestVerificationServiceReissueCancelsEarlierCodes(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)

	user := createUserWithStatus(t, repos, "reissue@example.com", "Sup3rSecret!", rbac.UserStatusUnverified)
	svc := rbac.NewVerificationService(repos)

	first, err := svc.Issue(ctx, db, user, rbac.VerificationTypeUser)
	require.NoError(t, err)

	second, err := svc.Issue(ctx, db, user, rbac.VerificationTypeUser)
	require.NoError(t, err)

	// the earlier code is dead
	_, err = svc.Validate(ctx, db, user.Email, first.Token, rbac.VerificationTypeUser)
	require.Error(t, err)
	assert.True(t, rbac.IsTextCode(err, rbac.TextCodeOTPNotValid))

	// the latest one still works
	verified, err := svc.Validate(ctx, db, user.Email, second.Token, rbac.VerificationTypeUser)
	require.NoError(t, err)
	assert.Equal(t, rbac.VerificationStatusVerified, verified.Status)
}

func TestVerificationServiceThrottle(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)

	user := createUserWithStatus(t, repos, "throttle@example.com", "Sup3rSecret!", rbac.UserStatusUnverified)
	svc := rbac.NewVerificationService(repos)

	for i := 0; i < rbac.OTPThrottleMax; i++ {
		_, err := svc.Issue(ctx, db, user, rbac.VerificationTypeUser)
		require.NoError(t, err)
	}

	_, err := svc.Issue(ctx, db, user, rbac.VerificationTypeUser)
	require.Error(t, err)
	assert.True(t, rbac.IsTextCode(err, rbac.TextCodeTooManyResendVerification))

	t.Run("flows throttle independently", func(t *testing.T) {
		_, err := svc.Issue(ctx, db, user, rbac.VerificationTypeForgotPassword)
		assert.NoError(t, err)
	})

	t.Run("forgot password flow has its own error", func(t *testing.T) {
		for i := 1; i < rbac.OTPThrottleMax; i++ {
			_, err := svc.Issue(ctx, db, user, rbac.VerificationTypeForgotPassword)
			require.NoError(t, err)
		}
		_, err := svc.Issue(ctx, db, user, rbac.VerificationTypeForgotPassword)
		require.Error(t, err)
		assert.True(t, rbac.IsTextCode(err, rbac.TextCodeTooManyForgotPassword))
	})

	t.Run("window expiry lifts the throttle", func(t *testing.T) {
		future := rbac.NewVerificationService(repos, rbac.WithVerificationClock(func() time.Time {
			return time.Now().Add(rbac.OTPThrottleWindow + time.Minute)
		}))
		_, err := future.Issue(ctx, db, user, rbac.VerificationTypeUser)
		assert.NoError(t, err)
	})
}

func TestVerificationServiceValidate(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)

	user := createUserWithStatus(t, repos, "validate@example.com", "Sup3rSecret!", rbac.UserStatusUnverified)
	svc := rbac.NewVerificationService(repos)

	t.Run("single use", func(t *testing.T) {
		record, err := svc.Issue(ctx, db, user, rbac.VerificationTypeUser)
		require.NoError(t, err)

		verified, err := svc.Validate(ctx, db, user.Email, record.Token, rbac.VerificationTypeUser)
		require.NoError(t, err)
		assert.Equal(t, rbac.VerificationStatusVerified, verified.Status)

		// consumed codes can never validate twice
		_, err = svc.Validate(ctx, db, user.Email, record.Token, rbac.VerificationTypeUser)
		require.Error(t, err)
		assert.True(t, rbac.IsTextCode(err, rbac.TextCodeOTPNotValid))
	})

	t.Run("wrong code", func(t *testing.T) {
		_, err := svc.Issue(ctx, db, user, rbac.VerificationTypeUser)
		require.NoError(t, err)

		_, err = svc.Validate(ctx, db, user.Email, "000000", rbac.VerificationTypeUser)
		require.Error(t, err)
		assert.True(t, rbac.IsTextCode(err, rbac.TextCodeOTPNotValid))
	})

	t.Run("wrong flow", func(t *testing.T) {
		record, err := svc.Issue(ctx, db, user, rbac.VerificationTypeForgotPassword)
		require.NoError(t, err)

		_, err = svc.Validate(ctx, db, user.Email, record.Token, rbac.VerificationTypeUser)
		require.Error(t, err)
		assert.True(t, rbac.IsTextCode(err, rbac.TextCodeOTPNotValid))
	})

	t.Run("expired code", func(t *testing.T) {
		record, err := svc.Issue(ctx, db, user, rbac.VerificationTypeUser)
		require.NoError(t, err)

		late := rbac.NewVerificationService(repos, rbac.WithVerificationClock(func() time.Time {
			return time.Now().Add(rbac.OTPTTL + time.Minute)
		}))
		_, err = late.Validate(ctx, db, user.Email, record.Token, rbac.VerificationTypeUser)
		require.Error(t, err)
		assert.True(t, rbac.IsTextCode(err, rbac.TextCodeOTPExpired))
	})
}

func TestVerificationServicePeek(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)

	user := createUserWithStatus(t, repos, "peek@example.com", "Sup3rSecret!", rbac.UserStatusUnverified)
	svc := rbac.NewVerificationService(repos)

	record, err := svc.Issue(ctx, db, user, rbac.VerificationTypeForgotPassword)
	require.NoError(t, err)

	// peeking does not consume
	require.NoError(t, svc.Peek(ctx, db, user.Email, record.Token, rbac.VerificationTypeForgotPassword))
	require.NoError(t, svc.Peek(ctx, db, user.Email, record.Token, rbac.VerificationTypeForgotPassword))

	// the code is still live for the real validation
	_, err = svc.Validate(ctx, db, user.Email, record.Token, rbac.VerificationTypeForgotPassword)
	require.NoError(t, err)

	err = svc.Peek(ctx, db, user.Email, "999999", rbac.VerificationTypeForgotPassword)
	require.Error(t, err)
	assert.True(t, rbac.IsTextCode(err, rbac.TextCodeOTPNotValid))
}
