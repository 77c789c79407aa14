package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/lib/logger/sl"
)

type CreateProfileInput struct {
	Email    string      `json:"email" validate:"required,email,max=255"`
	FullName string      `json:"full_name" validate:"notblank,max=255"`
	Role     domain.Role `json:"role" validate:"required,oneof=student counselor"`
}

type UpdateProfileInput struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	FullName *string `json:"full_name" validate:"omitempty,notblank,max=255"`
	IsActive *bool   `json:"is_active"`
}

type ProfileService struct {
	txRunner
	log *slog.Logger
}

func NewProfileService(store repository.Store, log *slog.Logger, opts ...Option) *ProfileService {
	if log == nil {
		log = slog.Default()
	}
	return &ProfileService{txRunner: buildOptions(opts).runner(store), log: log}
}

// ResolveCaller turns a verified identity into a Caller. An identity without a
// profile yet resolves to a role-less caller so it can sign up.
func (s *ProfileService) ResolveCaller(ctx context.Context, id uuid.UUID) (access.Caller, error) {
	caller := access.Caller{ID: id}
	if id == uuid.Nil {
		return caller, nil
	}

	var profile *domain.Profile
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		var err error
		profile, err = tx.Profiles().GetByID(ctx, id)
		return err
	})
	switch {
	case errors.Is(err, repository.ErrProfileNotFound):
		return caller, nil
	case err != nil:
		return access.Caller{}, err
	case !profile.IsActive:
		return access.Caller{}, ErrProfileInactive
	}
	caller.Role = profile.Role
	return caller, nil
}

func (s *ProfileService) CreateProfile(ctx context.Context, caller access.Caller, in CreateProfileInput) (*domain.Profile, error) {
	const op = "service.profile.create"
	log := s.log.With(
		slog.String("op", op),
		slog.String("caller", caller.ID.String()),
	)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	profile := domain.NewProfile(caller.ID, in.Email, in.FullName, in.Role)
	profile.CreatedAt = s.clock()
	profile.UpdatedAt = profile.CreatedAt

	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		if err := access.Check(caller, access.Insert, access.ForProfile(profile.ID)); err != nil {
			return err
		}
		return tx.Profiles().Create(ctx, profile)
	})
	if err != nil {
		log.Info("profile not created", sl.Err(err))
		return nil, err
	}

	log.Info("profile created", slog.String("role", string(profile.Role)))
	return profile, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, caller access.Caller, id uuid.UUID) (*domain.Profile, error) {
	var profile *domain.Profile
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		if err := access.Check(caller, access.Read, access.ForProfile(id)); err != nil {
			return err
		}
		var err error
		profile, err = tx.Profiles().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *ProfileService) ListProfiles(ctx context.Context, caller access.Caller, filter repository.ProfileFilter) ([]*domain.Profile, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, fieldError("role", "unknown role")
	}

	var profiles []*domain.Profile
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		if err := access.Check(caller, access.Read, access.ForProfile(uuid.Nil)); err != nil {
			return err
		}
		var err error
		profiles, err = tx.Profiles().List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpdateProfile changes the owner's own row. The role is fixed at creation.
func (s *ProfileService) UpdateProfile(ctx context.Context, caller access.Caller, id uuid.UUID, in UpdateProfileInput) (*domain.Profile, error) {
	const op = "service.profile.update"
	log := s.log.With(
		slog.String("op", op),
		slog.String("profile_id", id.String()),
	)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	var profile *domain.Profile
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		if err := access.Check(caller, access.Update, access.ForProfile(id)); err != nil {
			return err
		}
		var err error
		profile, err = tx.Profiles().GetByID(ctx, id)
		if err != nil {
			return err
		}

		if in.Email != nil {
			profile.Email = domain.NormalizeEmail(*in.Email)
		}
		if in.FullName != nil {
			profile.FullName = *in.FullName
		}
		if in.IsActive != nil {
			profile.IsActive = *in.IsActive
		}
		profile.UpdatedAt = s.clock()
		return tx.Profiles().Update(ctx, profile)
	})
	if err != nil {
		log.Info("profile not updated", sl.Err(err))
		return nil, err
	}

	log.Info("profile updated")
	return profile, nil
}
