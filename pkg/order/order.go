// Package order records confirmed phone orders.
//
// An order is created when the caller confirms the spoken summary. Orders
// persist through a Store backend so the kitchen dashboard survives a
// process restart.
//
// Example usage:
//
//	book := order.NewBookWithFile("orders.json")
//	o, err := book.Submit("Ahmed", []order.Item{{Name: "chicken shawarma", Quantity: 2}})
package order

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ETA is how long the kitchen quotes for pickup.
const ETA = 30 * time.Minute

// Item is one line of a confirmed order.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order is a confirmed order as stored and served to the dashboard.
type Order struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name"`
	Items        []Item    `json:"items"`
	Status       string    `json:"status"`
	PlacedAt     time.Time `json:"placed_at"`
	ReadyAt      time.Time `json:"ready_at"`
}

// Order statuses.
const (
	StatusPlaced    = "placed"
	StatusCompleted = "completed"
)

// Book holds all orders, persisting them to the configured Store.
type Book struct {
	orders map[string]*Order
	store  Store
	mu     sync.RWMutex
}

// NewBook creates an in-memory book (no persistence).
func NewBook() *Book {
	return &Book{orders: make(map[string]*Order)}
}

// NewBookWithStore creates a book with a custom storage backend and
// loads any existing orders from it.
func NewBookWithStore(store Store) *Book {
	b := NewBook()
	b.store = store
	b.load()
	return b
}

// NewBookWithFile creates a book that persists to a JSON file.
func NewBookWithFile(path string) *Book {
	return NewBookWithStore(NewJSONStore(path))
}

// Submit records a new order and persists it. The returned order carries
// its generated ID and the quoted ready time.
func (b *Book) Submit(customerName string, items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	now := time.Now().UTC()
	o := &Order{
		ID:           uuid.New().String(),
		CustomerName: customerName,
		Items:        append([]Item(nil), items...),
		Status:       StatusPlaced,
		PlacedAt:     now,
		ReadyAt:      now.Add(ETA),
	}

	b.mu.Lock()
	b.orders[o.ID] = o
	b.mu.Unlock()

	if err := b.save(); err != nil {
		return o, err
	}
	return o, nil
}

// Get returns the order with the given ID, or nil if unknown.
func (b *Book) Get(id string) *Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if o, ok := b.orders[id]; ok {
		clone := *o
		return &clone
	}
	return nil
}

// List returns all orders, newest first.
func (b *Book) List() []*Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Order, 0, len(b.orders))
	for _, o := range b.orders {
		clone := *o
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PlacedAt.After(out[j].PlacedAt)
	})
	return out
}

// Complete marks an order done. Returns false if the ID is unknown.
func (b *Book) Complete(id string) bool {
	b.mu.Lock()
	o, ok := b.orders[id]
	if ok {
		o.Status = StatusCompleted
	}
	b.mu.Unlock()

	if ok {
		b.save()
	}
	return ok
}

// save persists all orders to the configured store.
func (b *Book) save() error {
	if b.store == nil {
		return nil
	}

	snapshot := b.List()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return b.store.Save(data)
}

// load reads orders from the configured store.
func (b *Book) load() error {
	if b.store == nil {
		return nil
	}

	data, err := b.store.Load()
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var loaded []*Order
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range loaded {
		b.orders[o.ID] = o
	}
	return nil
}

// Close releases the underlying store.
func (b *Book) Close() error {
	if b.store == nil {
		return nil
	}
	return b.store.Close()
}
