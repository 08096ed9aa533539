package lot

import (
	"context"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"
	"lotmarket/internal/services/crud"
	"lotmarket/internal/store"

	"github.com/go-playground/validator/v10"
)

// ILotService manages lots. Lots are public; they are changed by their
// requester or an admin.
type ILotService interface {
	List(ctx context.Context, s domain.Session) ([]domain.Lot, error)
	// Get returns the lot with its bid history, newest first.
	Get(ctx context.Context, s domain.Session, id int64) (domain.LotDetail, error)
	Create(ctx context.Context, s domain.Session, in domain.LotInput) (domain.Lot, error)
	Update(ctx context.Context, s domain.Session, id int64, in domain.LotInput) (domain.Lot, error)
	Delete(ctx context.Context, s domain.Session, id int64) error
}

type lotStore interface {
	store.LotStore
	ListBidsByLot(ctx context.Context, lotID int64) ([]domain.BidView, error)
}

type lotService struct {
	store    lotStore
	validate *validator.Validate
}

func NewLotService(st lotStore) ILotService {
	return &lotService{store: st, validate: apperr.NewValidator()}
}

func (svc *lotService) List(ctx context.Context, _ domain.Session) ([]domain.Lot, error) {
	return svc.store.ListLots(ctx)
}

func (svc *lotService) Get(ctx context.Context, _ domain.Session, id int64) (domain.LotDetail, error) {
	l, err := svc.store.GetLot(ctx, id)
	if l, err = crud.Lookup(l, err, "lot", id); err != nil {
		return domain.LotDetail{}, err
	}
	bids, err := svc.store.ListBidsByLot(ctx, id)
	if err != nil {
		return domain.LotDetail{}, err
	}
	return domain.LotDetail{Lot: l, Bids: bids}, nil
}

func (svc *lotService) check(in domain.LotInput) error {
	if err := crud.Validate(svc.validate, in); err != nil {
		return err
	}
	if err := crud.Money("start_bid", in.StartBid, true); err != nil {
		return err
	}
	if err := crud.Money("reserved_price", in.ReservedPrice, true); err != nil {
		return err
	}
	if in.BuyPrice.Valid {
		return crud.Money("buy_price", in.BuyPrice.Decimal, false)
	}
	return nil
}

// Create makes the caller the requester unless an admin names one.
func (svc *lotService) Create(ctx context.Context, s domain.Session, in domain.LotInput) (domain.Lot, error) {
	if !s.IsAdmin() || in.RequesterID == 0 {
		in.RequesterID = s.ID
	}
	if err := svc.check(in); err != nil {
		return domain.Lot{}, err
	}
	id, err := svc.store.InsertLot(ctx, in)
	if err != nil {
		return domain.Lot{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *lotService) Update(ctx context.Context, s domain.Session, id int64, in domain.LotInput) (domain.Lot, error) {
	cur, err := svc.authorizeChange(ctx, s, id)
	if err != nil {
		return domain.Lot{}, err
	}
	if !s.IsAdmin() {
		in.RequesterID = cur.RequesterID
	}
	if err := svc.check(in); err != nil {
		return domain.Lot{}, err
	}
	n, err := svc.store.UpdateLot(ctx, id, in)
	if err := crud.Affected(n, err, "lot", id); err != nil {
		return domain.Lot{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *lotService) Delete(ctx context.Context, s domain.Session, id int64) error {
	if _, err := svc.authorizeChange(ctx, s, id); err != nil {
		return err
	}
	n, err := svc.store.DeleteLot(ctx, id)
	return crud.Affected(n, err, "lot", id)
}

// authorizeChange loads the lot and admits its requester or an admin. The
// lot is public, so a denial is Forbidden.
func (svc *lotService) authorizeChange(ctx context.Context, s domain.Session, id int64) (domain.Lot, error) {
	l, err := svc.store.GetLot(ctx, id)
	if l, err = crud.Lookup(l, err, "lot", id); err != nil {
		return domain.Lot{}, err
	}
	if !s.IsAdmin() && l.RequesterID != s.ID {
		return domain.Lot{}, apperr.Forbidden("only the requester may change this lot")
	}
	return l, nil
}

func (svc *lotService) reload(ctx context.Context, id int64) (domain.Lot, error) {
	l, err := svc.store.GetLot(ctx, id)
	if err != nil {
		return domain.Lot{}, apperr.Internal("reload lot", err)
	}
	return l, nil
}
