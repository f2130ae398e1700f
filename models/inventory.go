package models

import (
	"time"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
)

// StockMovementType names a ledger operation.
type StockMovementType string

const (
	StockIn         StockMovementType = "in"
	StockOut        StockMovementType = "out"
	StockAdjustment StockMovementType = "adjustment"
	StockReserved   StockMovementType = "reserved"
	StockReleased   StockMovementType = "released"
)

// Valid reports whether t is one of the five ledger operations.
func (t StockMovementType) Valid() bool {
	switch t {
	case StockIn, StockOut, StockAdjustment, StockReserved, StockReleased:
		return true
	}
	return false
}

const (
	MaxStockHistory          = 100
	DefaultLowStockThreshold = 5
)

// SizeInventory holds the counters for one sellable size. Reserved <= Quantity.
type SizeInventory struct {
	Size              string    `bson:"size" json:"size"`
	Quantity          int       `bson:"quantity" json:"quantity"`
	Reserved          int       `bson:"reserved" json:"reserved"`
	LowStockThreshold int       `bson:"lowStockThreshold" json:"lowStockThreshold"`
	LastUpdated       time.Time `bson:"lastUpdated" json:"lastUpdated"`
}

func (s SizeInventory) Available() int {
	return s.Quantity - s.Reserved
}

func (s SizeInventory) IsLow() bool {
	return s.Quantity <= s.LowStockThreshold
}

type StockHistoryEntry struct {
	Date     time.Time         `bson:"date" json:"date"`
	Type     StockMovementType `bson:"type" json:"type"`
	Quantity int               `bson:"quantity" json:"quantity"`
	Size     string            `bson:"size" json:"size"`
	Reason   string            `bson:"reason,omitempty" json:"reason,omitempty"`
	OrderID  string            `bson:"orderId,omitempty" json:"orderId,omitempty"`
	UserID   string            `bson:"userId,omitempty" json:"userId,omitempty"`
}

// Inventory is embedded in Product. The aggregate fields are derived from
// SizeInventory by Recalculate and never written independently.
type Inventory struct {
	SizeInventory  []SizeInventory     `bson:"sizeInventory" json:"sizeInventory"`
	TotalStock     int                 `bson:"totalStock" json:"totalStock"`
	AvailableStock int                 `bson:"availableStock" json:"availableStock"`
	ReservedStock  int                 `bson:"reservedStock" json:"reservedStock"`
	LowStockAlert  bool                `bson:"lowStockAlert" json:"lowStockAlert"`
	OutOfStock     bool                `bson:"outOfStock" json:"outOfStock"`
	StockHistory   []StockHistoryEntry `bson:"stockHistory" json:"stockHistory"`
}

// StockChange is the input to UpdateStock.
type StockChange struct {
	Size     string            `json:"size" binding:"required"`
	Quantity int               `json:"quantity" binding:"min=0"`
	Type     StockMovementType `json:"type" binding:"required,oneof=in out adjustment reserved released"`
	Reason   string            `json:"reason"`
	OrderID  string            `json:"orderId,omitempty"`
	UserID   string            `json:"-"`
}

// StockLevel is the answer to CheckStock.
type StockLevel struct {
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
	Total     int `json:"total"`
}

// NewInventory builds the initial inventory, logging an "in" entry for every
// size seeded with stock.
func NewInventory(sizes []SizeStockInput, userID string, now time.Time) Inventory {
	inv := Inventory{
		SizeInventory: make([]SizeInventory, 0, len(sizes)),
		StockHistory:  []StockHistoryEntry{},
	}
	for _, s := range sizes {
		threshold := DefaultLowStockThreshold
		if s.LowStockThreshold != nil {
			threshold = *s.LowStockThreshold
		}
		inv.SizeInventory = append(inv.SizeInventory, SizeInventory{
			Size:              s.Size,
			Quantity:          s.Quantity,
			LowStockThreshold: threshold,
			LastUpdated:       now,
		})
		if s.Quantity > 0 {
			inv.appendHistory(StockHistoryEntry{
				Date:     now,
				Type:     StockIn,
				Quantity: s.Quantity,
				Size:     s.Size,
				Reason:   "Initial stock",
				UserID:   userID,
			})
		}
	}
	inv.Recalculate()
	return inv
}

// Size returns the entry for size, or nil.
func (inv *Inventory) Size(size string) *SizeInventory {
	for i := range inv.SizeInventory {
		if inv.SizeInventory[i].Size == size {
			return &inv.SizeInventory[i]
		}
	}
	return nil
}

// AddSize registers an empty size. Existing sizes are left alone.
func (inv *Inventory) AddSize(size string, now time.Time) {
	if inv.Size(size) != nil {
		return
	}
	inv.SizeInventory = append(inv.SizeInventory, SizeInventory{
		Size:              size,
		LowStockThreshold: DefaultLowStockThreshold,
		LastUpdated:       now,
	})
	inv.Recalculate()
}

// CheckStock reports the counters for size. Unknown sizes report zeros.
func (inv *Inventory) CheckStock(size string) StockLevel {
	entry := inv.Size(size)
	if entry == nil {
		return StockLevel{}
	}
	return StockLevel{
		Available: entry.Available(),
		Reserved:  entry.Reserved,
		Total:     entry.Quantity,
	}
}

// Recalculate refreshes the derived totals and flags.
func (inv *Inventory) Recalculate() {
	total, reserved, low := 0, 0, false
	for _, s := range inv.SizeInventory {
		total += s.Quantity
		reserved += s.Reserved
		if s.IsLow() {
			low = true
		}
	}
	inv.TotalStock = total
	inv.ReservedStock = reserved
	inv.AvailableStock = total - reserved
	inv.LowStockAlert = low
	inv.OutOfStock = total == 0
}

func (inv *Inventory) appendHistory(e StockHistoryEntry) {
	inv.StockHistory = append(inv.StockHistory, e)
	if n := len(inv.StockHistory); n > MaxStockHistory {
		inv.StockHistory = append([]StockHistoryEntry(nil), inv.StockHistory[n-MaxStockHistory:]...)
	}
}

// UpdateStock applies one ledger operation in memory. On error the product is
// left untouched.
func (p *Product) UpdateStock(c StockChange, now time.Time) error {
	if !c.Type.Valid() {
		return apperrors.Validation("invalid stock movement type %q", c.Type)
	}
	if c.Quantity < 0 {
		return apperrors.Validation("quantity must not be negative")
	}

	entry := p.Inventory.Size(c.Size)
	if entry == nil {
		return apperrors.NotFound("size %s not found for product %s", c.Size, p.Name)
	}

	switch c.Type {
	case StockIn:
		entry.Quantity += c.Quantity
	case StockOut:
		if entry.Quantity < c.Quantity {
			return p.insufficient(entry, entry.Quantity, c.Quantity)
		}
		if entry.Quantity-c.Quantity < entry.Reserved {
			return p.insufficient(entry, entry.Available(), c.Quantity)
		}
		entry.Quantity -= c.Quantity
	case StockAdjustment:
		if c.Quantity < entry.Reserved {
			return apperrors.Validation("cannot set %s size %s to %d: %d units are reserved",
				p.Name, c.Size, c.Quantity, entry.Reserved)
		}
		entry.Quantity = c.Quantity
	case StockReserved:
		if entry.Available() < c.Quantity {
			return p.insufficient(entry, entry.Available(), c.Quantity)
		}
		entry.Reserved += c.Quantity
	case StockReleased:
		if entry.Reserved < c.Quantity {
			return apperrors.InsufficientStock("cannot release %d of %s size %s: only %d reserved",
				c.Quantity, p.Name, c.Size, entry.Reserved)
		}
		entry.Reserved -= c.Quantity
	}

	entry.LastUpdated = now
	p.Inventory.appendHistory(StockHistoryEntry{
		Date:     now,
		Type:     c.Type,
		Quantity: c.Quantity,
		Size:     c.Size,
		Reason:   c.Reason,
		OrderID:  c.OrderID,
		UserID:   c.UserID,
	})
	p.Inventory.Recalculate()
	return nil
}

func (p *Product) insufficient(entry *SizeInventory, available, requested int) error {
	return apperrors.InsufficientStock("insufficient stock for %s size %s: available %d, requested %d",
		p.Name, entry.Size, available, requested)
}
