package order

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/devmaster/delivery-backoffice/internal/domain/catalog"
)

// Selection is one requested (group, option) pair on a line item.
type Selection struct {
	GroupID  int64
	OptionID int64
}

// SelectedOption is a validated selection with its surcharge snapshot,
// ready to be persisted on the item.
type SelectedOption struct {
	GroupID   int64
	OptionID  int64
	Surcharge decimal.Decimal
}

// MissingRequiredGroupError indicates a mandatory option group received no
// selection.
type MissingRequiredGroupError struct {
	Group string
}

func (e *MissingRequiredGroupError) Error() string {
	return fmt.Sprintf("required option group %q not selected", e.Group)
}

// SelectionCountError indicates the number of selections for a group falls
// outside its configured bounds.
type SelectionCountError struct {
	Group string
	Min   int
	Max   int
	Count int
}

func (e *SelectionCountError) Error() string {
	return fmt.Sprintf("option group %q requires between %d and %d selections, got %d",
		e.Group, e.Min, e.Max, e.Count)
}

// GroupMismatchError indicates a selection crossed aggregate boundaries:
// an option that does not belong to its selected group, or a group that
// does not belong to the item's product.
type GroupMismatchError struct {
	GroupID  int64
	OptionID int64
}

func (e *GroupMismatchError) Error() string {
	if e.OptionID != 0 {
		return fmt.Sprintf("option %d does not belong to group %d", e.OptionID, e.GroupID)
	}
	return fmt.Sprintf("option group %d does not belong to the product", e.GroupID)
}

// OptionUnavailableError indicates a selected option is currently switched
// off in the catalog.
type OptionUnavailableError struct {
	Option string
}

func (e *OptionUnavailableError) Error() string {
	return fmt.Sprintf("option unavailable: %s", e.Option)
}

// ValidateSelections checks the selections for one line item against the
// product's option groups and resolves each selection's surcharge.
//
// Every mandatory group of the product must be selected at least once, and
// every group that appears in the selections (mandatory or not) must be
// selected within its min/max bounds. Validation is pure: the caller
// persists the returned snapshots.
func ValidateSelections(ctx context.Context, cat catalog.Lookup, product *catalog.Product, sels []Selection) ([]SelectedOption, error) {
	groups, err := cat.GroupsByProduct(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("load option groups for product %d: %w", product.ID, err)
	}

	groupByID := make(map[int64]catalog.OptionGroup, len(groups))
	for _, g := range groups {
		groupByID[g.ID] = g
	}

	countByGroup := make(map[int64]int, len(sels))
	for _, sel := range sels {
		countByGroup[sel.GroupID]++
	}

	for _, g := range groups {
		if g.Mandatory && countByGroup[g.ID] == 0 {
			return nil, &MissingRequiredGroupError{Group: g.Name}
		}
	}

	for groupID, count := range countByGroup {
		g, ok := groupByID[groupID]
		if !ok {
			// Selected group is not configured on this product.
			return nil, &GroupMismatchError{GroupID: groupID}
		}
		if !g.SelectionCountValid(count) {
			return nil, &SelectionCountError{
				Group: g.Name,
				Min:   g.MinSelections,
				Max:   g.MaxSelections,
				Count: count,
			}
		}
	}

	selected := make([]SelectedOption, 0, len(sels))
	for _, sel := range sels {
		opt, err := cat.Option(ctx, sel.OptionID)
		if err != nil {
			return nil, err
		}
		if opt.GroupID != sel.GroupID {
			return nil, &GroupMismatchError{GroupID: sel.GroupID, OptionID: sel.OptionID}
		}
		if !opt.Available {
			return nil, &OptionUnavailableError{Option: opt.Name}
		}
		selected = append(selected, SelectedOption{
			GroupID:   sel.GroupID,
			OptionID:  sel.OptionID,
			Surcharge: opt.Surcharge,
		})
	}

	return selected, nil
}
