package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProfileValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		in     CreateProfileInput
		fields []string
	}{
		{name: "bad email", in: CreateProfileInput{Email: "nope", FullName: "A", Role: domain.RoleStudent}, fields: []string{"email"}},
		{name: "blank name", in: CreateProfileInput{Email: "a@example.com", FullName: "  ", Role: domain.RoleStudent}, fields: []string{"full_name"}},
		{name: "admin signup", in: CreateProfileInput{Email: "a@example.com", FullName: "A", Role: domain.RoleAdmin}, fields: []string{"role"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.profiles.CreateProfile(ctx, access.Caller{ID: uuid.New()}, tt.in)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			got := make([]string, 0, len(verr.Fields))
			for _, fe := range verr.Fields {
				got = append(got, fe.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestCreateProfileDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.profiles.CreateProfile(ctx, access.Caller{ID: uuid.New()}, CreateProfileInput{
		Email: "SAM@example.com", FullName: "Other Sam", Role: domain.RoleStudent,
	})
	assert.ErrorIs(t, err, repository.ErrProfileEmailExists)

	_, err = f.profiles.CreateProfile(ctx, f.student, CreateProfileInput{
		Email: "again@example.com", FullName: "Sam", Role: domain.RoleStudent,
	})
	assert.ErrorIs(t, err, repository.ErrProfileExists)

	_, err = f.profiles.CreateProfile(ctx, access.Caller{}, CreateProfileInput{
		Email: "anon@example.com", FullName: "Anon", Role: domain.RoleStudent,
	})
	assert.ErrorIs(t, err, access.ErrPolicyDenied)
}

func TestUpdateProfileOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "Samantha"
	updated, err := f.profiles.UpdateProfile(ctx, f.student, f.student.ID, UpdateProfileInput{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Samantha", updated.FullName)
	assert.Equal(t, domain.RoleStudent, updated.Role)

	_, err = f.profiles.UpdateProfile(ctx, f.counselor, f.student.ID, UpdateProfileInput{FullName: &name})
	assert.ErrorIs(t, err, access.ErrPolicyDenied)

	got, err := f.profiles.GetProfile(ctx, f.stranger, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, "Samantha", got.FullName)
}

func TestResolveCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unknown := uuid.New()
	caller, err := f.profiles.ResolveCaller(ctx, unknown)
	require.NoError(t, err)
	assert.Equal(t, unknown, caller.ID)
	assert.Empty(t, caller.Role)

	inactive := false
	_, err = f.profiles.UpdateProfile(ctx, f.stranger, f.stranger.ID, UpdateProfileInput{IsActive: &inactive})
	require.NoError(t, err)
	_, err = f.profiles.ResolveCaller(ctx, f.stranger.ID)
	assert.ErrorIs(t, err, ErrProfileInactive)
}

func TestListProfilesByRole(t *testing.T) {
	f := newFixture(t)

	counselors, err := f.profiles.ListProfiles(context.Background(), f.student, repository.ProfileFilter{Role: domain.RoleCounselor})
	require.NoError(t, err)
	require.Len(t, counselors, 1)
	assert.Equal(t, f.counselor.ID, counselors[0].ID)

	_, err = f.profiles.ListProfiles(context.Background(), f.student, repository.ProfileFilter{Role: "wizard"})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}
