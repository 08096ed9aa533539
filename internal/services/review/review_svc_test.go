package review

import (
	"context"
	"testing"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/testfixture"

	"github.com/stretchr/testify/require"
)

func TestReviewLifecycle(t *testing.T) {
	f := testfixture.New(t)
	ctx := context.Background()
	provider := f.User("prov", domain.RoleUser, domain.RoleProvider)
	requester := f.User("req")
	stranger := f.User("stranger")
	contractID := f.Contract(f.Auction(), provider.ID, requester.ID)
	svc := NewReviewService(f.Store, policy.New(f.Store))

	comment := "on time"
	in := domain.ReviewInput{ContractID: contractID, ReviewerID: stranger.ID, ReviewedUserID: provider.ID, Rating: 5, Comment: &comment}
	r, err := svc.Create(ctx, requester, in)
	require.NoError(t, err)
	require.Equal(t, requester.ID, r.ReviewerID, "reviewer is the caller")

	_, err = svc.Get(ctx, provider, r.ReviewID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, stranger, r.ReviewID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	in.Rating = 6
	_, err = svc.Update(ctx, requester, r.ReviewID, in)
	require.ErrorIs(t, err, apperr.ErrBadRequest)
	e, _ := apperr.As(err)
	require.Equal(t, "rating", e.Field)

	in.Rating = 4
	got, err := svc.Update(ctx, requester, r.ReviewID, in)
	require.NoError(t, err)
	require.Equal(t, 4, got.Rating)
	require.Equal(t, requester.ID, got.ReviewerID)

	require.ErrorIs(t, svc.Delete(ctx, stranger, r.ReviewID), apperr.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, provider, r.ReviewID))
}
