package memory

import (
	"context"
	"slices"
	"strings"

	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/store"
)

func (s *Store) ListCompanies(_ context.Context, scope policy.Scope) ([]domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]domain.Company, 0)
	for _, c := range sortedValues(s.companies) {
		if scope.Matches(c) {
			list = append(list, c)
		}
	}
	return list, nil
}

func (s *Store) GetCompany(_ context.Context, id int64) (domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	if !ok {
		return domain.Company{}, store.ErrNotFound
	}
	return c, nil
}

// checkCompanyUnique mirrors the unique constraints on companies, ignoring
// the row being updated.
func (s *Store) checkCompanyUnique(self int64, in domain.CompanyInput) error {
	for id, c := range s.companies {
		if id == self {
			continue
		}
		switch {
		case c.Name == in.Name:
			return duplicate("name")
		case c.VATNumber == in.VATNumber:
			return duplicate("vatNumber")
		case c.PeppolID == in.PeppolID:
			return duplicate("peppolId")
		case c.InvoiceEmail != nil && in.InvoiceEmail != nil && *c.InvoiceEmail == *in.InvoiceEmail:
			return duplicate("invoiceEmail")
		}
	}
	return nil
}

func (s *Store) InsertCompany(_ context.Context, in domain.CompanyInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCompanyUnique(0, in); err != nil {
		return 0, err
	}
	id := s.nextID(domain.KindCompany)
	s.companies[id] = domain.Company{CompanyID: id, CompanyInput: in, CreatedAt: s.now()}
	return id, nil
}

func (s *Store) UpdateCompany(_ context.Context, id int64, in domain.CompanyInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return 0, nil
	}
	if err := s.checkCompanyUnique(id, in); err != nil {
		return 0, err
	}
	c.CompanyInput = in
	s.companies[id] = c
	return 1, nil
}

func (s *Store) DeleteCompany(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[id]; !ok {
		return 0, nil
	}
	for _, u := range s.users {
		if u.CompanyID != nil && *u.CompanyID == id {
			return 0, missing("company", "company_id")
		}
	}
	delete(s.companies, id)
	return 1, nil
}

func (s *Store) CompanyIDOf(_ context.Context, userID int64) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok || u.CompanyID == nil {
		return 0, false, nil
	}
	return *u.CompanyID, true, nil
}

func (s *Store) ListUsers(context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.users), nil
}

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (s *Store) InsertUser(_ context.Context, u domain.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.users {
		if other.Username == u.Username {
			return 0, duplicate("username")
		}
		if strings.EqualFold(other.Email, u.Email) {
			return 0, duplicate("email")
		}
	}
	if u.CompanyID != nil {
		if _, ok := s.companies[*u.CompanyID]; !ok {
			return 0, missing("company", "company_id")
		}
	}
	if len(u.Roles) == 0 {
		u.Roles = []domain.Role{domain.RoleUser}
	}
	u.Roles = slices.Clone(u.Roles)
	u.UserID = s.nextID(domain.KindUser)
	u.CreatedAt = s.now()
	s.users[u.UserID] = u
	return u.UserID, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, in domain.UserUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, nil
	}
	for otherID, other := range s.users {
		if otherID == id {
			continue
		}
		if other.Username == in.Username {
			return 0, duplicate("username")
		}
		if strings.EqualFold(other.Email, in.Email) {
			return 0, duplicate("email")
		}
	}
	u.Username, u.Email, u.Language = in.Username, in.Email, in.Language
	s.users[id] = u
	return 1, nil
}

// DeleteUser cascades to the user's bids, reviews written and favourites.
// Users still referenced as lot requester, contract party or reviewed user
// are kept.
func (s *Store) DeleteUser(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return 0, nil
	}
	for _, l := range s.lots {
		if l.RequesterID == id {
			return 0, missing("user", "requester_id")
		}
	}
	for _, c := range s.contracts {
		if c.ProviderID == id || c.RequesterID == id {
			return 0, missing("user", "provider_id")
		}
	}
	for _, r := range s.reviews {
		if r.ReviewedUserID == id {
			return 0, missing("user", "reviewed_user_id")
		}
	}
	delete(s.users, id)
	delete(s.favorites, id)
	for bidID, b := range s.bids {
		if b.BidderID == id {
			delete(s.bids, bidID)
		}
	}
	for reviewID, r := range s.reviews {
		if r.ReviewerID == id {
			delete(s.reviews, reviewID)
		}
	}
	for lotID, l := range s.lots {
		if l.WinnerID != nil && *l.WinnerID == id {
			l.WinnerID = nil
			s.lots[lotID] = l
		}
	}
	return 1, nil
}

func (s *Store) ListFavoriteLots(_ context.Context, userID int64) ([]domain.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]domain.Lot, 0)
	for _, l := range sortedValues(s.lots) {
		if _, ok := s.favorites[userID][l.LotID]; ok {
			list = append(list, l)
		}
	}
	return list, nil
}

func (s *Store) AddFavoriteLot(_ context.Context, userID, lotID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return missing("user", "user_id")
	}
	if _, ok := s.lots[lotID]; !ok {
		return missing("lot", "lot_id")
	}
	favs, ok := s.favorites[userID]
	if !ok {
		favs = make(map[int64]struct{})
		s.favorites[userID] = favs
	}
	favs[lotID] = struct{}{}
	return nil
}

func (s *Store) RemoveFavoriteLot(_ context.Context, userID, lotID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.favorites[userID][lotID]
	delete(s.favorites[userID], lotID)
	return boolRows(ok), nil
}
