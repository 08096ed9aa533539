package review

import (
	"context"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/services/crud"
	"lotmarket/internal/store"

	"github.com/go-playground/validator/v10"
)

// IReviewService manages reviews, visible to the reviewer and the reviewed
// user.
type IReviewService interface {
	List(ctx context.Context, s domain.Session) ([]domain.Review, error)
	Get(ctx context.Context, s domain.Session, id int64) (domain.Review, error)
	Create(ctx context.Context, s domain.Session, in domain.ReviewInput) (domain.Review, error)
	Update(ctx context.Context, s domain.Session, id int64, in domain.ReviewInput) (domain.Review, error)
	Delete(ctx context.Context, s domain.Session, id int64) error
}

type reviewService struct {
	store    store.ReviewStore
	policy   *policy.Engine
	validate *validator.Validate
}

func NewReviewService(st store.ReviewStore, pe *policy.Engine) IReviewService {
	return &reviewService{store: st, policy: pe, validate: apperr.NewValidator()}
}

func (svc *reviewService) List(ctx context.Context, s domain.Session) ([]domain.Review, error) {
	scope, err := svc.policy.VisibleFilter(ctx, s, domain.KindReview)
	if err != nil {
		return nil, err
	}
	return svc.store.ListReviews(ctx, scope)
}

func (svc *reviewService) Get(ctx context.Context, s domain.Session, id int64) (domain.Review, error) {
	r, err := svc.store.GetReview(ctx, id)
	if r, err = crud.Lookup(r, err, "review", id); err != nil {
		return domain.Review{}, err
	}
	d, err := svc.policy.Authorize(ctx, s, domain.KindReview, r)
	if err != nil {
		return domain.Review{}, err
	}
	if err := d.Err("review", id); err != nil {
		return domain.Review{}, err
	}
	return r, nil
}

// Create records the caller as reviewer unless an admin names one.
func (svc *reviewService) Create(ctx context.Context, s domain.Session, in domain.ReviewInput) (domain.Review, error) {
	if !s.IsAdmin() || in.ReviewerID == 0 {
		in.ReviewerID = s.ID
	}
	if err := crud.Validate(svc.validate, in); err != nil {
		return domain.Review{}, err
	}
	id, err := svc.store.InsertReview(ctx, in)
	if err != nil {
		return domain.Review{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *reviewService) Update(ctx context.Context, s domain.Session, id int64, in domain.ReviewInput) (domain.Review, error) {
	cur, err := svc.Get(ctx, s, id)
	if err != nil {
		return domain.Review{}, err
	}
	if !s.IsAdmin() {
		in.ReviewerID = cur.ReviewerID
	}
	if err := crud.Validate(svc.validate, in); err != nil {
		return domain.Review{}, err
	}
	n, err := svc.store.UpdateReview(ctx, id, in)
	if err := crud.Affected(n, err, "review", id); err != nil {
		return domain.Review{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *reviewService) Delete(ctx context.Context, s domain.Session, id int64) error {
	if _, err := svc.Get(ctx, s, id); err != nil {
		return err
	}
	n, err := svc.store.DeleteReview(ctx, id)
	return crud.Affected(n, err, "review", id)
}

func (svc *reviewService) reload(ctx context.Context, id int64) (domain.Review, error) {
	r, err := svc.store.GetReview(ctx, id)
	if err != nil {
		return domain.Review{}, apperr.Internal("reload review", err)
	}
	return r, nil
}
