package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ItemFixture represents test inventory item data
type ItemFixture struct {
	ID           string
	Name         string
	SKU          string
	Description  string
	CategoryID   *string
	Unit         string
	ReorderLevel int
	CostCents    int
	CurrentStock int
	IsActive     bool
	CreatedAt    time.Time
}

// BatchFixture represents test batch data
type BatchFixture struct {
	ID              string
	ItemID          string
	BatchNumber     string
	InitialQuantity int
	CurrentQuantity int
	UnitCostCents   int
	ExpiryDate      time.Time
	ReceivedAt      time.Time
	Status          string
}

// CategoryFixture represents test category data
type CategoryFixture struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
}

// StaffFixture represents test staff directory data
type StaffFixture struct {
	ID         string
	Name       string
	Role       string
	Specialty  string
	Department string
	Email      string
	Phone      string
	IsActive   bool
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Item creates an inventory item fixture with defaults
func (f *FixtureFactory) Item(opts ...func(*ItemFixture)) ItemFixture {
	seq := f.nextSeq()

	item := ItemFixture{
		ID:           uuid.New().String(),
		Name:         fmt.Sprintf("Test Item %d", seq),
		SKU:          fmt.Sprintf("SKU-%04d", seq),
		Description:  "Test inventory item",
		Unit:         "box",
		ReorderLevel: 10,
		CostCents:    250,
		CurrentStock: 0,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&item)
	}

	return item
}

// WithItemName sets the item name
func WithItemName(name string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.Name = name
	}
}

// WithSKU sets the item SKU
func WithSKU(sku string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.SKU = sku
	}
}

// WithCategoryID sets the item category
func WithCategoryID(categoryID string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.CategoryID = &categoryID
	}
}

// WithStock sets the item's cached stock level
func WithStock(stock int) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.CurrentStock = stock
	}
}

// WithReorderLevel sets the item reorder level
func WithReorderLevel(level int) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.ReorderLevel = level
	}
}

// Batch creates a batch fixture with defaults: active, full quantity,
// expiring well in the future.
func (f *FixtureFactory) Batch(itemID string, opts ...func(*BatchFixture)) BatchFixture {
	seq := f.nextSeq()

	batch := BatchFixture{
		ID:              uuid.New().String(),
		ItemID:          itemID,
		BatchNumber:     fmt.Sprintf("LOT-%04d", seq),
		InitialQuantity: 100,
		CurrentQuantity: 100,
		UnitCostCents:   250,
		ExpiryDate:      time.Now().AddDate(1, 0, 0),
		ReceivedAt:      time.Now(),
		Status:          "active",
	}

	for _, opt := range opts {
		opt(&batch)
	}

	return batch
}

// WithBatchNumber sets the batch number
func WithBatchNumber(number string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.BatchNumber = number
	}
}

// WithQuantity sets both initial and current quantity
func WithQuantity(qty int) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.InitialQuantity = qty
		b.CurrentQuantity = qty
	}
}

// WithExpiry sets the batch expiry date
func WithExpiry(expiry time.Time) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ExpiryDate = expiry
	}
}

// ExpiringIn sets the expiry date a number of days from now
func ExpiringIn(days int) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ExpiryDate = time.Now().AddDate(0, 0, days)
	}
}

// WithBatchStatus sets the batch status
func WithBatchStatus(status string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.Status = status
	}
}

// Category creates a category fixture with defaults
func (f *FixtureFactory) Category(opts ...func(*CategoryFixture)) CategoryFixture {
	seq := f.nextSeq()

	cat := CategoryFixture{
		ID:          uuid.New().String(),
		Name:        fmt.Sprintf("Category %d", seq),
		Description: "Test category",
		IsActive:    true,
	}

	for _, opt := range opts {
		opt(&cat)
	}

	return cat
}

// WithCategoryName sets the category name
func WithCategoryName(name string) func(*CategoryFixture) {
	return func(c *CategoryFixture) {
		c.Name = name
	}
}

// Staff creates a staff member fixture with defaults
func (f *FixtureFactory) Staff(opts ...func(*StaffFixture)) StaffFixture {
	seq := f.nextSeq()

	staff := StaffFixture{
		ID:         uuid.New().String(),
		Name:       fmt.Sprintf("Dr. Test %d", seq),
		Role:       "doctor",
		Specialty:  "General Medicine",
		Department: "General",
		Email:      fmt.Sprintf("staff%d@test.wardflow.io", seq),
		Phone:      fmt.Sprintf("+1-555-%04d", seq),
		IsActive:   true,
	}

	for _, opt := range opts {
		opt(&staff)
	}

	return staff
}

// WithStaffName sets the staff member name
func WithStaffName(name string) func(*StaffFixture) {
	return func(s *StaffFixture) {
		s.Name = name
	}
}

// WithStaffRole sets the staff member role
func WithStaffRole(role string) func(*StaffFixture) {
	return func(s *StaffFixture) {
		s.Role = role
	}
}

// WithDepartment sets the staff member department
func WithDepartment(department string) func(*StaffFixture) {
	return func(s *StaffFixture) {
		s.Department = department
	}
}
