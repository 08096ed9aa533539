// Package bidding validates and records bids.
//
// A placement runs the whole check-then-insert sequence inside one store
// transaction holding the lot lock, so two concurrent bids on the same lot
// are ordered and the second one is judged against the first. Storage
// conflicts are retried a bounded number of times before the caller gets a
// retriable Conflict.
package bidding

import (
	"context"
	"errors"
	"time"

	"lotmarket/internal/apperr"
	"lotmarket/internal/database/dberr"
	"lotmarket/internal/domain"
	"lotmarket/internal/metrics"
	"lotmarket/internal/policy"
	"lotmarket/internal/retry"
	"lotmarket/internal/services/crud"
	"lotmarket/internal/store"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// BidPublisher is told about every committed bid.
type BidPublisher interface {
	PublishBid(ctx context.Context, bid domain.BidView) error
}

type Config struct {
	Retry retry.Config
	// TxTimeout bounds a placement including its retries.
	TxTimeout time.Duration
}

type IBiddingService interface {
	PlaceBid(ctx context.Context, s domain.Session, in domain.PlaceBidInput) (domain.BidView, error)
	List(ctx context.Context, s domain.Session) ([]domain.BidView, error)
	ListByAuction(ctx context.Context, s domain.Session, auctionID int64) ([]domain.BidView, error)
	ListByLot(ctx context.Context, s domain.Session, lotID int64) ([]domain.BidView, error)
	Get(ctx context.Context, s domain.Session, id int64) (domain.BidView, error)
	Update(ctx context.Context, s domain.Session, id int64, in domain.BidCorrection) (domain.BidView, error)
	Delete(ctx context.Context, s domain.Session, id int64) error
}

type biddingService struct {
	store     store.Store
	policy    *policy.Engine
	publisher BidPublisher
	validate  *validator.Validate
	cfg       Config
	now       func() time.Time
}

// NewBiddingService accepts a nil publisher when there is no live feed.
func NewBiddingService(st store.Store, pe *policy.Engine, pub BidPublisher, cfg Config) IBiddingService {
	cfg.Retry.Retriable = isRetriable
	return &biddingService{
		store:     st,
		policy:    pe,
		publisher: pub,
		validate:  apperr.NewValidator(),
		cfg:       cfg,
		now:       time.Now,
	}
}

func isRetriable(err error) bool {
	return dberr.IsRetriable(err) || errors.Is(err, store.ErrLockTimeout)
}

func (svc *biddingService) PlaceBid(ctx context.Context, s domain.Session, in domain.PlaceBidInput) (domain.BidView, error) {
	start := time.Now()
	view, err := svc.placeBid(ctx, s, in)
	metrics.ObserveBid(bidResult(err), time.Since(start))
	if err != nil {
		return domain.BidView{}, err
	}

	if svc.publisher != nil {
		if perr := svc.publisher.PublishBid(ctx, view); perr != nil {
			zap.L().Warn("bidding.publish_failed",
				zap.Int64("bid_id", view.BidID),
				zap.Int64("lot_id", view.LotID),
				zap.Error(perr))
		}
	}
	return view, nil
}

func bidResult(err error) string {
	switch {
	case err == nil:
		return metrics.BidAccepted
	case errors.Is(err, apperr.ErrConflict):
		return metrics.BidConflict
	case errors.Is(err, apperr.ErrBadRequest), errors.Is(err, apperr.ErrNotFound):
		return metrics.BidRejected
	}
	return metrics.BidError
}

func (svc *biddingService) placeBid(ctx context.Context, s domain.Session, in domain.PlaceBidInput) (domain.BidView, error) {
	if err := crud.Validate(svc.validate, in); err != nil {
		return domain.BidView{}, err
	}
	if err := crud.Money("amount", in.Amount, false); err != nil {
		return domain.BidView{}, err
	}

	txCtx := ctx
	if svc.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, svc.cfg.TxTimeout)
		defer cancel()
	}

	attempt := 0
	bidID, err := retry.Do(txCtx, svc.cfg.Retry, "bidding.place_bid", func(ctx context.Context) (int64, error) {
		attempt++
		if attempt > 1 {
			metrics.IncBidRetry()
		}
		return svc.tryPlace(ctx, s, in)
	})
	if err != nil {
		return domain.BidView{}, placementError(ctx, in.LotID, err)
	}

	view, err := svc.store.GetBid(ctx, bidID)
	if err != nil {
		return domain.BidView{}, apperr.Internal("reload placed bid", err)
	}
	return view, nil
}

// placementError maps storage contention and the placement deadline onto a
// retriable Conflict. parent is the caller's context; its own cancellation
// is passed through unchanged.
func placementError(parent context.Context, lotID int64, err error) error {
	var exhausted *retry.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		return &apperr.Error{Kind: apperr.ErrConflict, Resource: "lot", ID: lotID, Field: "lot_id",
			Reason: "lot is busy, try again", Retriable: true, Err: err}
	case (errors.Is(err, context.DeadlineExceeded) || dberr.IsTimeout(err)) && parent.Err() == nil:
		return &apperr.Error{Kind: apperr.ErrConflict, Resource: "lot", ID: lotID, Field: "lot_id",
			Reason: "bid placement timed out, try again", Retriable: true, Err: err}
	}
	return err
}

// tryPlace is one transaction attempt.
func (svc *biddingService) tryPlace(ctx context.Context, s domain.Session, in domain.PlaceBidInput) (int64, error) {
	var bidID int64
	err := svc.store.PlaceBidTx(ctx, func(tx store.BidTx) error {
		lot, err := tx.LockLot(ctx, in.LotID)
		if err != nil {
			_, err = crud.Lookup(lot, err, "lot", in.LotID)
			return err
		}
		if lot.Status != domain.LotOpen {
			return apperr.BadRequest("status", "lot not open for bidding")
		}

		auctionID := lot.AuctionID
		if in.AuctionID != nil {
			auctionID = *in.AuctionID
		}
		if a, err := tx.GetAuction(ctx, auctionID); err != nil {
			_, err = crud.Lookup(a, err, "auction", auctionID)
			return err
		}

		floor := lot.StartBid
		bidTime := svc.now().UTC()
		last, ok, err := tx.LastBid(ctx, lot.LotID)
		if err != nil {
			return err
		}
		if ok {
			floor = last.Amount
			bidTime = after(bidTime, last.BidTime)
		}
		if !in.Amount.GreaterThan(floor) {
			return apperr.BadRequest("amount", "must exceed current bid")
		}

		bidID, err = tx.InsertBid(ctx, domain.Bid{
			LotID:     lot.LotID,
			AuctionID: auctionID,
			BidderID:  s.ID,
			Amount:    in.Amount,
			BidTime:   bidTime,
		})
		return err
	})
	return bidID, err
}

// after keeps bid times increasing per lot when the clock steps back or
// another instance's clock runs ahead. Postgres stores microseconds.
func after(now, last time.Time) time.Time {
	if now.After(last) {
		return now
	}
	return last.Add(time.Microsecond).UTC()
}

func (svc *biddingService) List(ctx context.Context, s domain.Session) ([]domain.BidView, error) {
	scope, err := svc.policy.VisibleFilter(ctx, s, domain.KindBid)
	if err != nil {
		return nil, err
	}
	return svc.store.ListBids(ctx, scope)
}

// ListByAuction is the public bid history of an auction.
func (svc *biddingService) ListByAuction(ctx context.Context, _ domain.Session, auctionID int64) ([]domain.BidView, error) {
	a, err := svc.store.GetAuction(ctx, auctionID)
	if _, err := crud.Lookup(a, err, "auction", auctionID); err != nil {
		return nil, err
	}
	return svc.store.ListBidsByAuction(ctx, auctionID)
}

// ListByLot is the public bid history of a lot, newest first.
func (svc *biddingService) ListByLot(ctx context.Context, _ domain.Session, lotID int64) ([]domain.BidView, error) {
	lot, err := svc.store.GetLot(ctx, lotID)
	if _, err := crud.Lookup(lot, err, "lot", lotID); err != nil {
		return nil, err
	}
	return svc.store.ListBidsByLot(ctx, lotID)
}

func (svc *biddingService) Get(ctx context.Context, s domain.Session, id int64) (domain.BidView, error) {
	view, err := svc.store.GetBid(ctx, id)
	if view, err = crud.Lookup(view, err, "bid", id); err != nil {
		return domain.BidView{}, err
	}
	d, err := svc.policy.Authorize(ctx, s, domain.KindBid, view)
	if err != nil {
		return domain.BidView{}, err
	}
	if err := d.Err("bid", id); err != nil {
		return domain.BidView{}, err
	}
	return view, nil
}

// Update is an administrative correction. It does not re-check that the
// amount exceeds earlier bids on the lot.
func (svc *biddingService) Update(ctx context.Context, s domain.Session, id int64, in domain.BidCorrection) (domain.BidView, error) {
	if err := policy.RequireRole(s, domain.RoleAdmin).Err("bid", id); err != nil {
		return domain.BidView{}, err
	}
	if err := crud.Validate(svc.validate, in); err != nil {
		return domain.BidView{}, err
	}
	if err := crud.Money("amount", in.Amount, false); err != nil {
		return domain.BidView{}, err
	}
	n, err := svc.store.UpdateBid(ctx, id, in)
	if err := crud.Affected(n, err, "bid", id); err != nil {
		return domain.BidView{}, err
	}
	view, err := svc.store.GetBid(ctx, id)
	return crud.Lookup(view, err, "bid", id)
}

func (svc *biddingService) Delete(ctx context.Context, s domain.Session, id int64) error {
	if err := policy.RequireRole(s, domain.RoleAdmin).Err("bid", id); err != nil {
		return err
	}
	n, err := svc.store.DeleteBid(ctx, id)
	return crud.Affected(n, err, "bid", id)
}
