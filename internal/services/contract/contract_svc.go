package contract

import (
	"context"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/services/crud"
	"lotmarket/internal/store"

	"github.com/go-playground/validator/v10"
)

// IContractService manages contracts. A contract is visible to its provider
// and requester.
type IContractService interface {
	List(ctx context.Context, s domain.Session) ([]domain.Contract, error)
	Get(ctx context.Context, s domain.Session, id int64) (domain.Contract, error)
	Create(ctx context.Context, s domain.Session, in domain.ContractInput) (domain.Contract, error)
	Update(ctx context.Context, s domain.Session, id int64, in domain.ContractInput) (domain.Contract, error)
	Delete(ctx context.Context, s domain.Session, id int64) error
}

type contractService struct {
	store    store.ContractStore
	policy   *policy.Engine
	validate *validator.Validate
}

func NewContractService(st store.ContractStore, pe *policy.Engine) IContractService {
	return &contractService{store: st, policy: pe, validate: apperr.NewValidator()}
}

func (svc *contractService) List(ctx context.Context, s domain.Session) ([]domain.Contract, error) {
	scope, err := svc.policy.VisibleFilter(ctx, s, domain.KindContract)
	if err != nil {
		return nil, err
	}
	return svc.store.ListContracts(ctx, scope)
}

func (svc *contractService) Get(ctx context.Context, s domain.Session, id int64) (domain.Contract, error) {
	c, err := svc.store.GetContract(ctx, id)
	if c, err = crud.Lookup(c, err, "contract", id); err != nil {
		return domain.Contract{}, err
	}
	d, err := svc.policy.Authorize(ctx, s, domain.KindContract, c)
	if err != nil {
		return domain.Contract{}, err
	}
	if err := d.Err("contract", id); err != nil {
		return domain.Contract{}, err
	}
	return c, nil
}

func (svc *contractService) check(in domain.ContractInput) error {
	if err := crud.Validate(svc.validate, in); err != nil {
		return err
	}
	return crud.Money("agreed_price", in.AgreedPrice, true)
}

func (svc *contractService) Create(ctx context.Context, s domain.Session, in domain.ContractInput) (domain.Contract, error) {
	if err := policy.RequireRole(s, domain.RoleProvider).Err("contract", nil); err != nil {
		return domain.Contract{}, err
	}
	if err := svc.check(in); err != nil {
		return domain.Contract{}, err
	}
	id, err := svc.store.InsertContract(ctx, in)
	if err != nil {
		return domain.Contract{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *contractService) Update(ctx context.Context, s domain.Session, id int64, in domain.ContractInput) (domain.Contract, error) {
	if _, err := svc.Get(ctx, s, id); err != nil {
		return domain.Contract{}, err
	}
	if err := svc.check(in); err != nil {
		return domain.Contract{}, err
	}
	n, err := svc.store.UpdateContract(ctx, id, in)
	if err := crud.Affected(n, err, "contract", id); err != nil {
		return domain.Contract{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *contractService) Delete(ctx context.Context, s domain.Session, id int64) error {
	if _, err := svc.Get(ctx, s, id); err != nil {
		return err
	}
	n, err := svc.store.DeleteContract(ctx, id)
	return crud.Affected(n, err, "contract", id)
}

func (svc *contractService) reload(ctx context.Context, id int64) (domain.Contract, error) {
	c, err := svc.store.GetContract(ctx, id)
	if err != nil {
		return domain.Contract{}, apperr.Internal("reload contract", err)
	}
	return c, nil
}
