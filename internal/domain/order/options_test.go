package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmaster/delivery-backoffice/internal/domain/catalog"
)

// fakeCatalog is an in-memory catalog.Lookup.
type fakeCatalog struct {
	products map[int64]*catalog.Product
	groups   map[int64]*catalog.OptionGroup
	options  map[int64]*catalog.Option
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: make(map[int64]*catalog.Product),
		groups:   make(map[int64]*catalog.OptionGroup),
		options:  make(map[int64]*catalog.Option),
	}
}

func (f *fakeCatalog) Product(_ context.Context, id int64) (*catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) OptionGroup(_ context.Context, id int64) (*catalog.OptionGroup, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, catalog.ErrGroupNotFound
	}
	cg := *g
	return &cg, nil
}

func (f *fakeCatalog) Option(_ context.Context, id int64) (*catalog.Option, error) {
	o, ok := f.options[id]
	if !ok {
		return nil, catalog.ErrOptionNotFound
	}
	co := *o
	return &co, nil
}

func (f *fakeCatalog) GroupsByProduct(_ context.Context, productID int64) ([]catalog.OptionGroup, error) {
	var groups []catalog.OptionGroup
	for _, g := range f.groups {
		if g.ProductID == productID {
			groups = append(groups, *g)
		}
	}
	return groups, nil
}

// burgerCatalog builds a product with one mandatory "Size" group
// (min=1,max=1) and one optional "Extras" group (min=0,max=2).
func burgerCatalog() (*fakeCatalog, *catalog.Product) {
	cat := newFakeCatalog()
	p := &catalog.Product{
		ID:           1,
		RestaurantID: 10,
		Name:         "Burger",
		ListPrice:    decimal.RequireFromString("25.00"),
		Available:    true,
	}
	cat.products[p.ID] = p
	cat.groups[100] = &catalog.OptionGroup{
		ID: 100, ProductID: 1, Name: "Size",
		Mandatory: true, MinSelections: 1, MaxSelections: 1,
	}
	cat.groups[200] = &catalog.OptionGroup{
		ID: 200, ProductID: 1, Name: "Extras",
		MinSelections: 0, MaxSelections: 2,
	}
	cat.options[101] = &catalog.Option{
		ID: 101, GroupID: 100, Name: "Large",
		Surcharge: decimal.RequireFromString("5.00"), Available: true,
	}
	cat.options[102] = &catalog.Option{
		ID: 102, GroupID: 100, Name: "Regular",
		Surcharge: decimal.Zero, Available: true,
	}
	cat.options[201] = &catalog.Option{
		ID: 201, GroupID: 200, Name: "Bacon",
		Surcharge: decimal.RequireFromString("3.50"), Available: true,
	}
	cat.options[202] = &catalog.Option{
		ID: 202, GroupID: 200, Name: "Truffle",
		Surcharge: decimal.RequireFromString("9.00"), Available: false,
	}
	return cat, p
}

func TestValidateSelections_OK(t *testing.T) {
	cat, p := burgerCatalog()

	selected, err := ValidateSelections(context.Background(), cat, p, []Selection{
		{GroupID: 100, OptionID: 101},
		{GroupID: 200, OptionID: 201},
	})

	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.True(t, decimal.RequireFromString("5.00").Equal(selected[0].Surcharge))
	assert.True(t, decimal.RequireFromString("3.50").Equal(selected[1].Surcharge))
}

func TestValidateSelections_MissingRequiredGroup(t *testing.T) {
	cat, p := burgerCatalog()

	// Only the optional group selected; "Size" is mandatory.
	_, err := ValidateSelections(context.Background(), cat, p, []Selection{
		{GroupID: 200, OptionID: 201},
	})

	var mrErr *MissingRequiredGroupError
	require.ErrorAs(t, err, &mrErr)
	assert.Equal(t, "Size", mrErr.Group)
}

func TestValidateSelections_NoSelectionsAtAll(t *testing.T) {
	cat, p := burgerCatalog()

	_, err := ValidateSelections(context.Background(), cat, p, nil)

	var mrErr *MissingRequiredGroupError
	require.ErrorAs(t, err, &mrErr)
}

func TestValidateSelections_TooManyForGroup(t *testing.T) {
	cat, p := burgerCatalog()

	// Two sizes picked on a min=1,max=1 group.
	_, err := ValidateSelections(context.Background(), cat, p, []Selection{
		{GroupID: 100, OptionID: 101},
		{GroupID: 100, OptionID: 102},
	})

	var scErr *SelectionCountError
	require.ErrorAs(t, err, &scErr)
	assert.Equal(t, "Size", scErr.Group)
	assert.Equal(t, 1, scErr.Min)
	assert.Equal(t, 1, scErr.Max)
	assert.Equal(t, 2, scErr.Count)
}

func TestValidateSelections_OptionFromAnotherGroup(t *testing.T) {
	cat, p := burgerCatalog()

	// Bacon (Extras) claimed under the Size group.
	_, err := ValidateSelections(context.Background(), cat, p, []Selection{
		{GroupID: 100, OptionID: 201},
	})

	var gmErr *GroupMismatchError
	require.ErrorAs(t, err, &gmErr)
	assert.Equal(t, int64(100), gmErr.GroupID)
	assert.Equal(t, int64(201), gmErr.OptionID)
}

func TestValidateSelections_GroupOfAnotherProduct(t *testing.T) {
	cat, p := burgerCatalog()
	cat.groups[300] = &catalog.OptionGroup{
		ID: 300, ProductID: 99, Name: "Toppings",
		MinSelections: 0, MaxSelections: 3,
	}
	cat.options[301] = &catalog.Option{
		ID: 301, GroupID: 300, Name: "Olives", Available: true,
	}

	_, err := ValidateSelections(context.Background(), cat, p, []Selection{
		{GroupID: 100, OptionID: 101},
		{GroupID: 300, OptionID: 301},
	})

	var gmErr *GroupMismatchError
	require.ErrorAs(t, err, &gmErr)
	assert.Equal(t, int64(300), gmErr.GroupID)
}

func TestValidateSelections_OptionUnavailable(t *testing.T) {
	cat, p := burgerCatalog()

	_, err := ValidateSelections(context.Background(), cat, p, []Selection{
		{GroupID: 100, OptionID: 101},
		{GroupID: 200, OptionID: 202},
	})

	var ouErr *OptionUnavailableError
	require.ErrorAs(t, err, &ouErr)
	assert.Equal(t, "Truffle", ouErr.Option)
}

func TestValidateSelections_UnknownOption(t *testing.T) {
	cat, p := burgerCatalog()

	_, err := ValidateSelections(context.Background(), cat, p, []Selection{
		{GroupID: 100, OptionID: 999},
	})
	require.ErrorIs(t, err, catalog.ErrOptionNotFound)
}
