package company

import (
	"context"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/services/crud"
	"lotmarket/internal/store"

	"github.com/go-playground/validator/v10"
)

// ICompanyService manages companies. Users see only the company they belong
// to; other companies are reported missing.
type ICompanyService interface {
	List(ctx context.Context, s domain.Session) ([]domain.Company, error)
	Get(ctx context.Context, s domain.Session, id int64) (domain.Company, error)
	Create(ctx context.Context, s domain.Session, in domain.CompanyInput) (domain.Company, error)
	Update(ctx context.Context, s domain.Session, id int64, in domain.CompanyInput) (domain.Company, error)
	Delete(ctx context.Context, s domain.Session, id int64) error
}

type companyService struct {
	store    store.CompanyStore
	policy   *policy.Engine
	validate *validator.Validate
}

func NewCompanyService(st store.CompanyStore, pe *policy.Engine) ICompanyService {
	return &companyService{store: st, policy: pe, validate: apperr.NewValidator()}
}

func (svc *companyService) List(ctx context.Context, s domain.Session) ([]domain.Company, error) {
	scope, err := svc.policy.VisibleFilter(ctx, s, domain.KindCompany)
	if err != nil {
		return nil, err
	}
	return svc.store.ListCompanies(ctx, scope)
}

func (svc *companyService) Get(ctx context.Context, s domain.Session, id int64) (domain.Company, error) {
	c, err := svc.store.GetCompany(ctx, id)
	if c, err = crud.Lookup(c, err, "company", id); err != nil {
		return domain.Company{}, err
	}
	d, err := svc.policy.Authorize(ctx, s, domain.KindCompany, c)
	if err != nil {
		return domain.Company{}, err
	}
	if err := d.Err("company", id); err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

func (svc *companyService) Create(ctx context.Context, _ domain.Session, in domain.CompanyInput) (domain.Company, error) {
	if err := crud.Validate(svc.validate, in); err != nil {
		return domain.Company{}, err
	}
	id, err := svc.store.InsertCompany(ctx, in)
	if err != nil {
		return domain.Company{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *companyService) Update(ctx context.Context, s domain.Session, id int64, in domain.CompanyInput) (domain.Company, error) {
	if _, err := svc.Get(ctx, s, id); err != nil {
		return domain.Company{}, err
	}
	if err := crud.Validate(svc.validate, in); err != nil {
		return domain.Company{}, err
	}
	n, err := svc.store.UpdateCompany(ctx, id, in)
	if err := crud.Affected(n, err, "company", id); err != nil {
		return domain.Company{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *companyService) Delete(ctx context.Context, s domain.Session, id int64) error {
	if _, err := svc.Get(ctx, s, id); err != nil {
		return err
	}
	n, err := svc.store.DeleteCompany(ctx, id)
	return crud.Affected(n, err, "company", id)
}

func (svc *companyService) reload(ctx context.Context, id int64) (domain.Company, error) {
	c, err := svc.store.GetCompany(ctx, id)
	if err != nil {
		return domain.Company{}, apperr.Internal("reload company", err)
	}
	return c, nil
}
