package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gearbox-hq/gearbox/internal/loader"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// clock is swapped by tests.
var now = time.Now

// FeedPublisher pushes change events to the realtime feed after writes.
type FeedPublisher interface {
	Publish(ctx context.Context, table string, orgID int64, kind string, row any)
}

// ListPage is one page of a listing plus the unpaginated row count. It is
// the unit the resilience loader caches and deduplicates.
type ListPage struct {
	Rows  []Invoice
	Total int
}

// Service implements invoice business logic. Every mutation that touches
// line items runs inside one database transaction together with its stock
// and task side effects. The default (unfiltered first page) listing goes
// through the resilience loader so concurrent callers share one fetch.
type Service struct {
	repo   RepositoryPort
	feed   FeedPublisher
	audit  *shared.AuditLogger
	loader *loader.Loader[ListPage]
}

// NewService builds an invoice service. audit and ld may be nil in tests.
func NewService(repo RepositoryPort, feed FeedPublisher, audit *shared.AuditLogger, ld *loader.Loader[ListPage]) *Service {
	return &Service{repo: repo, feed: feed, audit: audit, loader: ld}
}

// defaultPageLimit mirrors the pagination default the list handler applies.
const defaultPageLimit = 20

// defaultPage reports whether the filter is the unnarrowed first page that
// every dashboard load requests. Only that shape is safe to deduplicate
// under a shared table+scope key.
func (f ListFilter) defaultPage() bool {
	return f.CustomerID == 0 && f.VehicleID == 0 && f.Status == "" &&
		f.DateFrom == nil && f.DateTo == nil && f.Offset == 0 && f.Limit == defaultPageLimit
}

// List returns invoices visible to the caller.
func (s *Service) List(ctx context.Context, caller *shared.Caller, filter ListFilter) ([]View, int, error) {
	scope := caller.OrgScope()
	items, total, err := s.list(ctx, scope, filter)
	if err != nil {
		return nil, 0, err
	}
	views := make([]View, 0, len(items))
	for _, inv := range items {
		views = append(views, NewView(inv))
	}
	return views, total, nil
}

func (s *Service) list(ctx context.Context, scope int64, filter ListFilter) ([]Invoice, int, error) {
	if s.loader == nil || !filter.defaultPage() {
		return s.repo.List(ctx, scope, filter)
	}
	pages, err := s.loader.Load(ctx, "invoices", scope, func(ctx context.Context) ([]ListPage, error) {
		rows, total, err := s.repo.List(ctx, scope, filter)
		if err != nil {
			return nil, err
		}
		return []ListPage{{Rows: rows, Total: total}}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	if len(pages) == 0 {
		return nil, 0, nil
	}
	return pages[0].Rows, pages[0].Total, nil
}

// Get fetches one invoice, enforcing tenant visibility.
func (s *Service) Get(ctx context.Context, caller *shared.Caller, id int64) (*View, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Elevated() && inv.OrganizationID != caller.OrganizationID {
		return nil, ErrNotFound
	}
	v := NewView(*inv)
	return &v, nil
}

// Create persists a new invoice and applies its item side effects
// atomically: stock decrements, task links, and any creates_* directives.
func (s *Service) Create(ctx context.Context, caller *shared.Caller, in CreateInput) (*View, error) {
	orgID := caller.OrganizationID
	if orgID == 0 {
		return nil, fmt.Errorf("%w: caller has no organization", shared.ErrNotFound)
	}
	if in.DiscountType == "" {
		in.DiscountType = DiscountNone
	}

	// Number generation and insert race under concurrent creates; on a
	// collision the whole transaction is retried with a fresh number. The
	// invoice and items are rebuilt per attempt because the bridge consumes
	// creates_* directives in place.
	var inv Invoice
	var items []Item
	for attempt := 0; ; attempt++ {
		number, err := s.repo.GenerateNumber(ctx, orgID, in.Date)
		if err != nil {
			return nil, err
		}

		inv = Invoice{
			OrganizationID: orgID,
			Number:         number,
			CustomerID:     in.CustomerID,
			VehicleID:      in.VehicleID,
			Date:           in.Date,
			DueDate:        in.DueDate,
			TaxRate:        in.TaxRate,
			DiscountType:   in.DiscountType,
			DiscountValue:  in.DiscountValue,
			Status:         StatusOpen,
			Notes:          in.Notes,
		}

		items = make([]Item, 0, len(in.Items))
		for i, it := range in.Items {
			items = append(items, it.toItem(0, i))
		}
		inv.Items = items

		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			id, err := tx.CreateInvoice(ctx, inv, inv.Totals())
			if err != nil {
				return err
			}
			inv.ID = id
			for i := range items {
				items[i].InvoiceID = id
			}
			bridge := NewBridge(tx, tx)
			if err := bridge.Apply(ctx, &inv, items); err != nil {
				return err
			}
			for i := range items {
				itemID, err := tx.InsertItem(ctx, items[i])
				if err != nil {
					return err
				}
				items[i].ID = itemID
			}
			return nil
		})
		if err == nil {
			break
		}
		if errors.Is(err, ErrNumberTaken) && attempt < 2 {
			continue
		}
		return nil, err
	}

	inv.Items = items
	s.publish(ctx, inv, "INSERT")
	s.record(ctx, caller, "invoice.create", inv)
	v := NewView(inv)
	return &v, nil
}

// Update replaces the invoice header and item list. The previous item list's
// effects are fully reversed before the new list is applied, so repeating an
// update with the same payload is a no-op on stock and tasks.
func (s *Service) Update(ctx context.Context, caller *shared.Caller, id int64, in UpdateInput) (*View, error) {
	if in.DiscountType == "" {
		in.DiscountType = DiscountNone
	}
	var updated Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !caller.Elevated() && current.OrganizationID != caller.OrganizationID {
			return ErrNotFound
		}
		if !current.Status.Editable() {
			return fmt.Errorf("%w: status %s", shared.ErrInvoiceNotEditable, current.Status)
		}

		newItems := make([]Item, 0, len(in.Items))
		for i, it := range in.Items {
			newItems = append(newItems, it.toItem(id, i))
		}

		updated = *current
		updated.CustomerID = in.CustomerID
		updated.VehicleID = in.VehicleID
		updated.Date = in.Date
		updated.DueDate = in.DueDate
		updated.TaxRate = in.TaxRate
		updated.DiscountType = in.DiscountType
		updated.DiscountValue = in.DiscountValue
		updated.Notes = in.Notes

		bridge := NewBridge(tx, tx)
		if err := bridge.Reconcile(ctx, &updated, current.Items, newItems); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		for i := range newItems {
			itemID, err := tx.InsertItem(ctx, newItems[i])
			if err != nil {
				return err
			}
			newItems[i].ID = itemID
		}
		updated.Items = newItems

		// totals may have changed; re-derive status from existing payments
		reconcileStatus(&updated)
		if err := tx.UpdateInvoice(ctx, updated, updated.Totals()); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, id, updated.Status, updated.PaidAmount())
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, updated, "UPDATE")
	s.record(ctx, caller, "invoice.update", updated)
	v := NewView(updated)
	return &v, nil
}

// Cancel marks the invoice cancelled and reverses every stock and task
// effect of its items. The item rows stay as a record of what was billed.
func (s *Service) Cancel(ctx context.Context, caller *shared.Caller, id int64) (*View, error) {
	var cancelled Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !caller.Elevated() && current.OrganizationID != caller.OrganizationID {
			return ErrNotFound
		}
		if current.Status == StatusCancelled {
			return fmt.Errorf("%w: already cancelled", shared.ErrInvoiceNotEditable)
		}

		bridge := NewBridge(tx, tx)
		if err := bridge.Reverse(ctx, current, current.Items, nil); err != nil {
			return err
		}
		cancelled = *current
		cancelled.Status = StatusCancelled
		return tx.UpdateStatus(ctx, id, StatusCancelled, cancelled.PaidAmount())
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, cancelled, "UPDATE")
	s.record(ctx, caller, "invoice.cancel", cancelled)
	v := NewView(cancelled)
	return &v, nil
}

// AddPayment records a payment and reconciles invoice status. Overpaying and
// paying a locked invoice are rejected.
func (s *Service) AddPayment(ctx context.Context, caller *shared.Caller, invoiceID int64, in PaymentInput) (*View, error) {
	var result Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !caller.Elevated() && current.OrganizationID != caller.OrganizationID {
			return ErrNotFound
		}

		payment := Payment{
			InvoiceID: invoiceID,
			Amount:    in.Amount,
			Date:      in.Date,
			Method:    in.Method,
			Notes:     in.Notes,
		}
		if err := ApplyPayment(current, payment); err != nil {
			return err
		}
		paymentID, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		current.Payments[len(current.Payments)-1].ID = paymentID
		result = *current
		return tx.UpdateStatus(ctx, invoiceID, current.Status, current.PaidAmount())
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, result, "UPDATE")
	s.record(ctx, caller, "invoice.payment.add", result)
	v := NewView(result)
	return &v, nil
}

// DeletePayment removes a payment and reconciles status, including walking a
// paid invoice back to partially paid or open.
func (s *Service) DeletePayment(ctx context.Context, caller *shared.Caller, invoiceID, paymentID int64) (*View, error) {
	var result Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !caller.Elevated() && current.OrganizationID != caller.OrganizationID {
			return ErrNotFound
		}
		if err := RemovePayment(current, paymentID); err != nil {
			return err
		}
		if err := tx.DeletePayment(ctx, paymentID); err != nil {
			return err
		}
		result = *current
		return tx.UpdateStatus(ctx, invoiceID, current.Status, current.PaidAmount())
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, result, "UPDATE")
	s.record(ctx, caller, "invoice.payment.remove", result)
	v := NewView(result)
	return &v, nil
}

// AssignPart adds a stock part to the invoice as an auto-added line,
// decrementing inventory in the same transaction.
func (s *Service) AssignPart(ctx context.Context, caller *shared.Caller, invoiceID, partID int64, quantity float64) (*View, error) {
	return s.assign(ctx, caller, invoiceID, "invoice.part.assign", func(ctx context.Context, tx TxRepository, inv *Invoice) (Item, error) {
		return NewBridge(tx, tx).AssignPart(ctx, inv, partID, quantity)
	})
}

// AssignTask bills a completed task on the invoice as an auto-added labor
// line.
func (s *Service) AssignTask(ctx context.Context, caller *shared.Caller, invoiceID, taskID int64) (*View, error) {
	return s.assign(ctx, caller, invoiceID, "invoice.task.assign", func(ctx context.Context, tx TxRepository, inv *Invoice) (Item, error) {
		return NewBridge(tx, tx).AssignTask(ctx, inv, taskID)
	})
}

func (s *Service) assign(ctx context.Context, caller *shared.Caller, invoiceID int64, action string, fn func(context.Context, TxRepository, *Invoice) (Item, error)) (*View, error) {
	var result Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !caller.Elevated() && current.OrganizationID != caller.OrganizationID {
			return ErrNotFound
		}
		item, err := fn(ctx, tx, current)
		if err != nil {
			return err
		}
		item.SortOrder = len(current.Items)
		itemID, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = itemID
		current.Items = append(current.Items, item)

		reconcileStatus(current)
		if err := tx.UpdateInvoice(ctx, *current, current.Totals()); err != nil {
			return err
		}
		result = *current
		return tx.UpdateStatus(ctx, invoiceID, current.Status, current.PaidAmount())
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, result, "UPDATE")
	s.record(ctx, caller, action, result)
	v := NewView(result)
	return &v, nil
}

// RemoveItem deletes one line item and reverses its stock or task effect.
func (s *Service) RemoveItem(ctx context.Context, caller *shared.Caller, invoiceID, itemID int64) (*View, error) {
	var result Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !caller.Elevated() && current.OrganizationID != caller.OrganizationID {
			return ErrNotFound
		}

		idx := -1
		for i := range current.Items {
			if current.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		removed := current.Items[idx]
		remaining := make([]Item, 0, len(current.Items)-1)
		remaining = append(remaining, current.Items[:idx]...)
		remaining = append(remaining, current.Items[idx+1:]...)

		bridge := NewBridge(tx, tx)
		if err := bridge.UnassignItem(ctx, current, removed, remaining); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		current.Items = remaining

		reconcileStatus(current)
		if err := tx.UpdateInvoice(ctx, *current, current.Totals()); err != nil {
			return err
		}
		result = *current
		return tx.UpdateStatus(ctx, invoiceID, current.Status, current.PaidAmount())
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, result, "UPDATE")
	s.record(ctx, caller, "invoice.item.remove", result)
	v := NewView(result)
	return &v, nil
}

// SweepOverdue flips past-due open invoices to overdue. Called from the
// scheduled job.
func (s *Service) SweepOverdue(ctx context.Context) (int64, error) {
	return s.repo.MarkOverdue(ctx, now())
}

func (s *Service) publish(ctx context.Context, inv Invoice, kind string) {
	if s.feed != nil {
		s.feed.Publish(ctx, "invoices", inv.OrganizationID, kind, NewView(inv))
	}
}

func (s *Service) record(ctx context.Context, caller *shared.Caller, action string, inv Invoice) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:        caller.UserID,
		OrganizationID: inv.OrganizationID,
		Action:         action,
		Entity:         "invoice",
		EntityID:       fmt.Sprintf("%d", inv.ID),
	})
}
