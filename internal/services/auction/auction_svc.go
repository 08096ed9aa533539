package auction

import (
	"context"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/services/crud"
	"lotmarket/internal/store"

	"github.com/go-playground/validator/v10"
)

// IAuctionService manages auctions. Auctions are public to any session;
// only admins change them.
type IAuctionService interface {
	List(ctx context.Context, s domain.Session) ([]domain.Auction, error)
	Get(ctx context.Context, s domain.Session, id int64) (domain.Auction, error)
	Create(ctx context.Context, s domain.Session, in domain.AuctionInput) (domain.Auction, error)
	Update(ctx context.Context, s domain.Session, id int64, in domain.AuctionInput) (domain.Auction, error)
	Delete(ctx context.Context, s domain.Session, id int64) error
}

type auctionService struct {
	store    store.AuctionStore
	validate *validator.Validate
}

func NewAuctionService(st store.AuctionStore) IAuctionService {
	return &auctionService{store: st, validate: apperr.NewValidator()}
}

func (svc *auctionService) List(ctx context.Context, _ domain.Session) ([]domain.Auction, error) {
	return svc.store.ListAuctions(ctx)
}

func (svc *auctionService) Get(ctx context.Context, _ domain.Session, id int64) (domain.Auction, error) {
	a, err := svc.store.GetAuction(ctx, id)
	return crud.Lookup(a, err, "auction", id)
}

func (svc *auctionService) Create(ctx context.Context, _ domain.Session, in domain.AuctionInput) (domain.Auction, error) {
	if err := crud.Validate(svc.validate, in); err != nil {
		return domain.Auction{}, err
	}
	id, err := svc.store.InsertAuction(ctx, in)
	if err != nil {
		return domain.Auction{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *auctionService) Update(ctx context.Context, s domain.Session, id int64, in domain.AuctionInput) (domain.Auction, error) {
	if err := policy.RequireRole(s, domain.RoleAdmin).Err("auction", id); err != nil {
		return domain.Auction{}, err
	}
	if err := crud.Validate(svc.validate, in); err != nil {
		return domain.Auction{}, err
	}
	n, err := svc.store.UpdateAuction(ctx, id, in)
	if err := crud.Affected(n, err, "auction", id); err != nil {
		return domain.Auction{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *auctionService) Delete(ctx context.Context, s domain.Session, id int64) error {
	if err := policy.RequireRole(s, domain.RoleAdmin).Err("auction", id); err != nil {
		return err
	}
	n, err := svc.store.DeleteAuction(ctx, id)
	return crud.Affected(n, err, "auction", id)
}

func (svc *auctionService) reload(ctx context.Context, id int64) (domain.Auction, error) {
	a, err := svc.store.GetAuction(ctx, id)
	if err != nil {
		return domain.Auction{}, apperr.Internal("reload auction", err)
	}
	return a, nil
}
