package user

import (
	"context"
	"errors"

	"lotmarket/internal/apperr"
	"lotmarket/internal/auth"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/services/crud"
	"lotmarket/internal/store"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// IUserService manages accounts. A user record is private to its owner;
// only admins list everyone.
type IUserService interface {
	// Register needs no session. Providers must register a company with
	// their account.
	Register(ctx context.Context, in domain.RegisterInput) (domain.User, error)
	List(ctx context.Context, s domain.Session) ([]domain.User, error)
	Get(ctx context.Context, s domain.Session, id int64) (domain.User, error)
	Update(ctx context.Context, s domain.Session, id int64, in domain.UserUpdate) (domain.User, error)
	Delete(ctx context.Context, s domain.Session, id int64) error

	FavoriteLots(ctx context.Context, s domain.Session, userID int64) ([]domain.Lot, error)
	AddFavoriteLot(ctx context.Context, s domain.Session, userID, lotID int64) error
	RemoveFavoriteLot(ctx context.Context, s domain.Session, userID, lotID int64) error
}

type userStore interface {
	store.UserStore
	InsertCompany(ctx context.Context, in domain.CompanyInput) (int64, error)
	DeleteCompany(ctx context.Context, id int64) (int64, error)
}

type userService struct {
	store    userStore
	validate *validator.Validate
}

func NewUserService(st userStore) IUserService {
	return &userService{store: st, validate: apperr.NewValidator()}
}

func (svc *userService) Register(ctx context.Context, in domain.RegisterInput) (domain.User, error) {
	if err := crud.Validate(svc.validate, in); err != nil {
		return domain.User{}, err
	}
	if in.IsProvider && in.Company == nil {
		return domain.User{}, apperr.BadRequest("company", "required for providers")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, apperr.Internal("hash password", err)
	}
	u := domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Roles:        []domain.Role{domain.RoleUser},
		IsProvider:   in.IsProvider,
		Language:     in.Language,
	}

	var companyID int64
	if in.IsProvider {
		u.Roles = append(u.Roles, domain.RoleProvider)
		if companyID, err = svc.store.InsertCompany(ctx, *in.Company); err != nil {
			return domain.User{}, err
		}
		u.CompanyID = &companyID
	}

	id, err := svc.store.InsertUser(ctx, u)
	if err != nil {
		if companyID != 0 {
			if _, derr := svc.store.DeleteCompany(ctx, companyID); derr != nil {
				zap.L().Error("user.register_cleanup_failed", zap.Int64("company_id", companyID), zap.Error(derr))
			}
		}
		return domain.User{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *userService) List(ctx context.Context, s domain.Session) ([]domain.User, error) {
	if err := policy.RequireRole(s, domain.RoleAdmin).Err("user", nil); err != nil {
		return nil, err
	}
	return svc.store.ListUsers(ctx)
}

// self admits the user themselves or an admin; anyone else is told the user
// does not exist.
func self(s domain.Session, id int64) error {
	if s.IsAdmin() || s.ID == id {
		return nil
	}
	return apperr.NotFound("user", id)
}

func (svc *userService) Get(ctx context.Context, s domain.Session, id int64) (domain.User, error) {
	if err := self(s, id); err != nil {
		return domain.User{}, err
	}
	u, err := svc.store.GetUser(ctx, id)
	return crud.Lookup(u, err, "user", id)
}

func (svc *userService) Update(ctx context.Context, s domain.Session, id int64, in domain.UserUpdate) (domain.User, error) {
	if err := self(s, id); err != nil {
		return domain.User{}, err
	}
	if err := crud.Validate(svc.validate, in); err != nil {
		return domain.User{}, err
	}
	n, err := svc.store.UpdateUser(ctx, id, in)
	if err := crud.Affected(n, err, "user", id); err != nil {
		return domain.User{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *userService) Delete(ctx context.Context, s domain.Session, id int64) error {
	if err := self(s, id); err != nil {
		return err
	}
	n, err := svc.store.DeleteUser(ctx, id)
	return crud.Affected(n, err, "user", id)
}

func (svc *userService) FavoriteLots(ctx context.Context, s domain.Session, userID int64) ([]domain.Lot, error) {
	if err := self(s, userID); err != nil {
		return nil, err
	}
	return svc.store.ListFavoriteLots(ctx, userID)
}

func (svc *userService) AddFavoriteLot(ctx context.Context, s domain.Session, userID, lotID int64) error {
	if err := self(s, userID); err != nil {
		return err
	}
	return svc.store.AddFavoriteLot(ctx, userID, lotID)
}

func (svc *userService) RemoveFavoriteLot(ctx context.Context, s domain.Session, userID, lotID int64) error {
	if err := self(s, userID); err != nil {
		return err
	}
	n, err := svc.store.RemoveFavoriteLot(ctx, userID, lotID)
	return crud.Affected(n, err, "lot", lotID)
}

func (svc *userService) reload(ctx context.Context, id int64) (domain.User, error) {
	u, err := svc.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, apperr.Internal("reload user", err)
	}
	return u, err
}
