package memory

import (
	"context"

	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/store"
)

func (s *Store) ListContracts(_ context.Context, scope policy.Scope) ([]domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]domain.Contract, 0)
	for _, c := range sortedValues(s.contracts) {
		if scope.Matches(c) {
			list = append(list, c)
		}
	}
	return list, nil
}

func (s *Store) GetContract(_ context.Context, id int64) (domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return domain.Contract{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) checkContractRefs(in domain.ContractInput) error {
	if _, ok := s.auctions[in.AuctionID]; !ok {
		return missing("auction", "auction_id")
	}
	if _, ok := s.users[in.ProviderID]; !ok {
		return missing("user", "provider_id")
	}
	if _, ok := s.users[in.RequesterID]; !ok {
		return missing("user", "requester_id")
	}
	return nil
}

func (s *Store) InsertContract(_ context.Context, in domain.ContractInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkContractRefs(in); err != nil {
		return 0, err
	}
	id := s.nextID(domain.KindContract)
	s.contracts[id] = domain.Contract{ContractID: id, ContractInput: in}
	return id, nil
}

func (s *Store) UpdateContract(_ context.Context, id int64, in domain.ContractInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[id]; !ok {
		return 0, nil
	}
	if err := s.checkContractRefs(in); err != nil {
		return 0, err
	}
	s.contracts[id] = domain.Contract{ContractID: id, ContractInput: in}
	return 1, nil
}

func (s *Store) DeleteContract(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[id]; !ok {
		return 0, nil
	}
	s.deleteContractLocked(id)
	return 1, nil
}

func (s *Store) deleteContractLocked(id int64) {
	delete(s.contracts, id)
	for invoiceID, i := range s.invoices {
		if i.ContractID == id {
			delete(s.invoices, invoiceID)
		}
	}
	for reviewID, r := range s.reviews {
		if r.ContractID == id {
			delete(s.reviews, reviewID)
		}
	}
}

// withContract joins the invoice's contract. Must be called with mu held.
func (s *Store) withContract(i domain.Invoice) domain.Invoice {
	if c, ok := s.contracts[i.ContractID]; ok {
		i.Contract = &c
	}
	return i
}

func (s *Store) ListInvoices(_ context.Context, scope policy.Scope) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]domain.Invoice, 0)
	for _, i := range sortedValues(s.invoices) {
		i = s.withContract(i)
		if scope.Matches(i) {
			list = append(list, i)
		}
	}
	return list, nil
}

func (s *Store) GetInvoice(_ context.Context, id int64) (domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.invoices[id]
	if !ok {
		return domain.Invoice{}, store.ErrNotFound
	}
	return s.withContract(i), nil
}

func (s *Store) InsertInvoice(_ context.Context, in domain.InvoiceInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[in.ContractID]; !ok {
		return 0, missing("contract", "contract_id")
	}
	id := s.nextID(domain.KindInvoice)
	s.invoices[id] = domain.Invoice{InvoiceID: id, InvoiceInput: in}
	return id, nil
}

func (s *Store) UpdateInvoice(_ context.Context, id int64, in domain.InvoiceInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[id]; !ok {
		return 0, nil
	}
	if _, ok := s.contracts[in.ContractID]; !ok {
		return 0, missing("contract", "contract_id")
	}
	s.invoices[id] = domain.Invoice{InvoiceID: id, InvoiceInput: in}
	return 1, nil
}

func (s *Store) DeleteInvoice(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.invoices[id]
	delete(s.invoices, id)
	return boolRows(ok), nil
}

func (s *Store) ListReviews(_ context.Context, scope policy.Scope) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]domain.Review, 0)
	for _, r := range sortedValues(s.reviews) {
		if scope.Matches(r) {
			list = append(list, r)
		}
	}
	return list, nil
}

func (s *Store) GetReview(_ context.Context, id int64) (domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.Review{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) checkReviewRefs(in domain.ReviewInput) error {
	if _, ok := s.contracts[in.ContractID]; !ok {
		return missing("contract", "contract_id")
	}
	if _, ok := s.users[in.ReviewerID]; !ok {
		return missing("user", "reviewer_id")
	}
	if _, ok := s.users[in.ReviewedUserID]; !ok {
		return missing("user", "reviewed_user_id")
	}
	return nil
}

func (s *Store) InsertReview(_ context.Context, in domain.ReviewInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReviewRefs(in); err != nil {
		return 0, err
	}
	id := s.nextID(domain.KindReview)
	s.reviews[id] = domain.Review{ReviewID: id, ReviewInput: in, CreatedAt: s.now()}
	return id, nil
}

func (s *Store) UpdateReview(_ context.Context, id int64, in domain.ReviewInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return 0, nil
	}
	if err := s.checkReviewRefs(in); err != nil {
		return 0, err
	}
	r.ReviewInput = in
	s.reviews[id] = r
	return 1, nil
}

func (s *Store) DeleteReview(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reviews[id]
	delete(s.reviews, id)
	return boolRows(ok), nil
}
