package invoice

import (
	"context"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/services/crud"
	"lotmarket/internal/store"

	"github.com/go-playground/validator/v10"
)

// IInvoiceService manages invoices. An invoice is visible to the parties
// of its contract; changing one also needs the PROVIDER role.
type IInvoiceService interface {
	List(ctx context.Context, s domain.Session) ([]domain.Invoice, error)
	Get(ctx context.Context, s domain.Session, id int64) (domain.Invoice, error)
	Create(ctx context.Context, s domain.Session, in domain.InvoiceInput) (domain.Invoice, error)
	Update(ctx context.Context, s domain.Session, id int64, in domain.InvoiceInput) (domain.Invoice, error)
	Delete(ctx context.Context, s domain.Session, id int64) error
}

type invoiceStore interface {
	store.InvoiceStore
	GetContract(ctx context.Context, id int64) (domain.Contract, error)
}

type invoiceService struct {
	store    invoiceStore
	policy   *policy.Engine
	validate *validator.Validate
}

func NewInvoiceService(st invoiceStore, pe *policy.Engine) IInvoiceService {
	return &invoiceService{store: st, policy: pe, validate: apperr.NewValidator()}
}

func (svc *invoiceService) List(ctx context.Context, s domain.Session) ([]domain.Invoice, error) {
	scope, err := svc.policy.VisibleFilter(ctx, s, domain.KindInvoice)
	if err != nil {
		return nil, err
	}
	return svc.store.ListInvoices(ctx, scope)
}

func (svc *invoiceService) Get(ctx context.Context, s domain.Session, id int64) (domain.Invoice, error) {
	inv, err := svc.store.GetInvoice(ctx, id)
	if inv, err = crud.Lookup(inv, err, "invoice", id); err != nil {
		return domain.Invoice{}, err
	}
	d, err := svc.policy.Authorize(ctx, s, domain.KindInvoice, inv)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := d.Err("invoice", id); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

// checkContract requires the caller to be a party to the contract the
// invoice is raised against. Strangers see NotFound.
func (svc *invoiceService) checkContract(ctx context.Context, s domain.Session, contractID int64) error {
	c, err := svc.store.GetContract(ctx, contractID)
	if c, err = crud.Lookup(c, err, "contract", contractID); err != nil {
		return err
	}
	d, err := svc.policy.Authorize(ctx, s, domain.KindContract, c)
	if err != nil {
		return err
	}
	return d.Err("contract", contractID)
}

func (svc *invoiceService) check(ctx context.Context, s domain.Session, in domain.InvoiceInput) error {
	if err := crud.Validate(svc.validate, in); err != nil {
		return err
	}
	if err := crud.Money("amount", in.Amount, false); err != nil {
		return err
	}
	return svc.checkContract(ctx, s, in.ContractID)
}

func (svc *invoiceService) Create(ctx context.Context, s domain.Session, in domain.InvoiceInput) (domain.Invoice, error) {
	if err := policy.RequireRole(s, domain.RoleProvider).Err("invoice", nil); err != nil {
		return domain.Invoice{}, err
	}
	if err := svc.check(ctx, s, in); err != nil {
		return domain.Invoice{}, err
	}
	id, err := svc.store.InsertInvoice(ctx, in)
	if err != nil {
		return domain.Invoice{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *invoiceService) Update(ctx context.Context, s domain.Session, id int64, in domain.InvoiceInput) (domain.Invoice, error) {
	if err := policy.RequireRole(s, domain.RoleProvider).Err("invoice", id); err != nil {
		return domain.Invoice{}, err
	}
	if _, err := svc.Get(ctx, s, id); err != nil {
		return domain.Invoice{}, err
	}
	if err := svc.check(ctx, s, in); err != nil {
		return domain.Invoice{}, err
	}
	n, err := svc.store.UpdateInvoice(ctx, id, in)
	if err := crud.Affected(n, err, "invoice", id); err != nil {
		return domain.Invoice{}, err
	}
	return svc.reload(ctx, id)
}

func (svc *invoiceService) Delete(ctx context.Context, s domain.Session, id int64) error {
	if err := policy.RequireRole(s, domain.RoleProvider).Err("invoice", id); err != nil {
		return err
	}
	if _, err := svc.Get(ctx, s, id); err != nil {
		return err
	}
	n, err := svc.store.DeleteInvoice(ctx, id)
	return crud.Affected(n, err, "invoice", id)
}

func (svc *invoiceService) reload(ctx context.Context, id int64) (domain.Invoice, error) {
	inv, err := svc.store.GetInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, apperr.Internal("reload invoice", err)
	}
	return inv, nil
}
