package invoices

import (
	"context"
	"fmt"

	"github.com/gearbox-hq/gearbox/internal/parts"
	"github.com/gearbox-hq/gearbox/internal/shared"
	"github.com/gearbox-hq/gearbox/internal/tasks"
)

// PartStore gives the bridge transactional access to part stock. Production
// implementations run inside the same database transaction as the invoice
// write so a failure rolls back every adjustment together.
type PartStore interface {
	GetForUpdate(ctx context.Context, id int64) (*parts.Part, error)
	AdjustQuantity(ctx context.Context, id int64, delta float64) (float64, error)
	AddInvoiceRef(ctx context.Context, partID, invoiceID int64) error
	RemoveInvoiceRef(ctx context.Context, partID, invoiceID int64) error
	Create(ctx context.Context, p parts.Part) (int64, error)
}

// TaskStore gives the bridge transactional access to task records.
type TaskStore interface {
	GetTaskForUpdate(ctx context.Context, id int64) (*tasks.Task, error)
	LinkInvoice(ctx context.Context, taskID, invoiceID int64, price float64) error
	UnlinkInvoice(ctx context.Context, taskID int64) error
	CreateTask(ctx context.Context, t tasks.Task) (int64, error)
}

// Bridge reconciles invoice line items with part inventory and task records.
// The contract is full reverse-then-apply: editing an invoice first undoes
// every effect of the previous item list, then applies the new list from
// scratch. Running it twice with the same new list lands in the same state.
type Bridge struct {
	parts PartStore
	tasks TaskStore
}

// NewBridge builds a Bridge over the transactional stores.
func NewBridge(partStore PartStore, taskStore TaskStore) *Bridge {
	return &Bridge{parts: partStore, tasks: taskStore}
}

// Apply materialises the side effects of the invoice's new item list:
// stock decrements, invoice references, task linkage, and the one-time
// creates_inventory_part / creates_task directives. Items are mutated in
// place to capture ids of spawned parts/tasks; callers persist them after.
func (b *Bridge) Apply(ctx context.Context, inv *Invoice, items []Item) error {
	for i := range items {
		item := &items[i]
		switch item.Type {
		case ItemPart:
			if err := b.applyPartItem(ctx, inv, item); err != nil {
				return err
			}
		case ItemLabor:
			if err := b.applyLaborItem(ctx, inv, item); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reverse undoes the side effects of the old item list. remaining holds the
// item list that will still reference parts after this reversal (empty on
// invoice deletion) so shared invoice references are only dropped when the
// last consuming item goes away.
func (b *Bridge) Reverse(ctx context.Context, inv *Invoice, old []Item, remaining []Item) error {
	stillReferenced := make(map[int64]bool)
	for _, item := range remaining {
		if item.Type == ItemPart && item.PartID != nil {
			stillReferenced[*item.PartID] = true
		}
	}

	for _, item := range old {
		switch item.Type {
		case ItemPart:
			if item.PartID == nil {
				continue
			}
			// Restore the exact quantity recorded on the item row; the
			// decrement may have been floored at zero but the row is the
			// source of truth for what was taken.
			if _, err := b.parts.AdjustQuantity(ctx, *item.PartID, item.Quantity); err != nil {
				return fmt.Errorf("restore part %d stock: %w", *item.PartID, err)
			}
			if !stillReferenced[*item.PartID] {
				if err := b.parts.RemoveInvoiceRef(ctx, *item.PartID, inv.ID); err != nil {
					return fmt.Errorf("unlink part %d: %w", *item.PartID, err)
				}
			}
		case ItemLabor:
			if item.TaskID == nil {
				continue
			}
			if err := b.tasks.UnlinkInvoice(ctx, *item.TaskID); err != nil {
				return fmt.Errorf("unlink task %d: %w", *item.TaskID, err)
			}
		}
	}
	return nil
}

// Reconcile performs the edit-time sequence: reverse old effects, then apply
// the new list.
func (b *Bridge) Reconcile(ctx context.Context, inv *Invoice, old, updated []Item) error {
	if err := b.Reverse(ctx, inv, old, updated); err != nil {
		return err
	}
	return b.Apply(ctx, inv, updated)
}

func (b *Bridge) applyPartItem(ctx context.Context, inv *Invoice, item *Item) error {
	if item.PartID == nil && item.CreatesPart {
		id, err := b.parts.Create(ctx, parts.Part{
			OrganizationID: inv.OrganizationID,
			Name:           item.Description,
			Price:          item.Price,
			Quantity:       0,
			InvoiceIDs:     []int64{inv.ID},
		})
		if err != nil {
			return fmt.Errorf("spawn part from item: %w", err)
		}
		item.PartID = &id
		item.CreatesPart = false
		return nil
	}
	if item.PartID == nil {
		return nil
	}
	if _, err := b.parts.GetForUpdate(ctx, *item.PartID); err != nil {
		return fmt.Errorf("lock part %d: %w", *item.PartID, err)
	}
	if _, err := b.parts.AdjustQuantity(ctx, *item.PartID, -item.Quantity); err != nil {
		return fmt.Errorf("consume part %d stock: %w", *item.PartID, err)
	}
	if err := b.parts.AddInvoiceRef(ctx, *item.PartID, inv.ID); err != nil {
		return fmt.Errorf("link part %d: %w", *item.PartID, err)
	}
	return nil
}

func (b *Bridge) applyLaborItem(ctx context.Context, inv *Invoice, item *Item) error {
	if item.TaskID == nil && item.CreatesTask {
		id, err := b.tasks.CreateTask(ctx, tasks.Task{
			OrganizationID: inv.OrganizationID,
			Title:          item.Description,
			Status:         tasks.StatusCompleted,
			HoursEstimated: item.Quantity,
			HoursSpent:     item.Quantity,
			Price:          item.Quantity * item.Price,
			InvoiceID:      &inv.ID,
			VehicleID:      inv.VehicleID,
		})
		if err != nil {
			return fmt.Errorf("spawn task from item: %w", err)
		}
		item.TaskID = &id
		item.CreatesTask = false
		return nil
	}
	if item.TaskID == nil {
		return nil
	}
	task, err := b.tasks.GetTaskForUpdate(ctx, *item.TaskID)
	if err != nil {
		return fmt.Errorf("lock task %d: %w", *item.TaskID, err)
	}
	if !task.Billable() {
		return tasks.ErrNotCompleted
	}
	// Relink sets invoice and billed price only; hours_spent stays untouched.
	if err := b.tasks.LinkInvoice(ctx, *item.TaskID, inv.ID, item.Quantity*item.Price); err != nil {
		return fmt.Errorf("link task %d: %w", *item.TaskID, err)
	}
	return nil
}

// AssignPart is the manual assignment path: consume qty of a part for an
// existing invoice outside the item-edit flow. The caller persists the
// returned auto-added item in the same transaction.
func (b *Bridge) AssignPart(ctx context.Context, inv *Invoice, partID int64, qty float64) (Item, error) {
	if !inv.Status.Editable() {
		return Item{}, fmt.Errorf("%w: status %s", shared.ErrInvoiceNotEditable, inv.Status)
	}
	if qty <= 0 {
		return Item{}, parts.ErrInvalidQuantity
	}
	part, err := b.parts.GetForUpdate(ctx, partID)
	if err != nil {
		return Item{}, err
	}
	if part.Quantity < qty {
		return Item{}, fmt.Errorf("%w: %s has %.2f, requested %.2f",
			shared.ErrInsufficientStock, part.Name, part.Quantity, qty)
	}
	if _, err := b.parts.AdjustQuantity(ctx, partID, -qty); err != nil {
		return Item{}, err
	}
	if err := b.parts.AddInvoiceRef(ctx, partID, inv.ID); err != nil {
		return Item{}, err
	}
	return Item{
		InvoiceID:   inv.ID,
		Type:        ItemPart,
		Description: part.Name,
		Quantity:    qty,
		Price:       part.Price,
		PartID:      &partID,
		IsAutoAdded: true,
	}, nil
}

// AssignTask links a completed task to an existing invoice, returning the
// auto-added labor item to persist.
func (b *Bridge) AssignTask(ctx context.Context, inv *Invoice, taskID int64) (Item, error) {
	if !inv.Status.Editable() {
		return Item{}, fmt.Errorf("%w: status %s", shared.ErrInvoiceNotEditable, inv.Status)
	}
	task, err := b.tasks.GetTaskForUpdate(ctx, taskID)
	if err != nil {
		return Item{}, err
	}
	if !task.Billable() {
		return Item{}, tasks.ErrNotCompleted
	}
	if task.InvoiceID != nil && *task.InvoiceID != inv.ID {
		return Item{}, tasks.ErrAlreadyBilled
	}
	if err := b.tasks.LinkInvoice(ctx, taskID, inv.ID, task.Price); err != nil {
		return Item{}, err
	}
	qty := task.HoursSpent
	if qty == 0 {
		qty = 1
	}
	return Item{
		InvoiceID:   inv.ID,
		Type:        ItemLabor,
		Description: task.Title,
		Quantity:    qty,
		Price:       task.Price / qty,
		TaskID:      &taskID,
		IsAutoAdded: true,
	}, nil
}

// UnassignItem reverses one auto-added item: the exact quantity recorded on
// the row goes back to stock, or the task linkage is cleared.
func (b *Bridge) UnassignItem(ctx context.Context, inv *Invoice, item Item, remaining []Item) error {
	if inv.Status == StatusCancelled {
		return fmt.Errorf("%w: status %s", shared.ErrInvoiceNotEditable, inv.Status)
	}
	return b.Reverse(ctx, inv, []Item{item}, remaining)
}
