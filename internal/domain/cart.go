package domain

import "time"

// LineKey identifies a cart line for merge purposes.
type LineKey struct {
	ProductID string `bson:"product_id" json:"product_id"`
	Size      string `bson:"size,omitempty" json:"size,omitempty"`
}

type CartLineItem struct {
	ProductID string    `bson:"product_id" json:"product_id"`
	Name      string    `bson:"name" json:"name"`
	UnitPrice int64     `bson:"unit_price" json:"unit_price"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	Size      string    `bson:"size,omitempty" json:"size,omitempty"`
	ImageRef  string    `bson:"image_ref,omitempty" json:"image_ref,omitempty"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

func (i CartLineItem) Key() LineKey {
	return LineKey{ProductID: i.ProductID, Size: i.Size}
}

type Cart struct {
	ID        string         `bson:"_id,omitempty" json:"-"`
	UserID    string         `bson:"user_id" json:"user_id,omitempty"`
	Items     []CartLineItem `bson:"items" json:"items"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updated_at"`
}

func NewCart(userID string) *Cart {
	now := time.Now()
	return &Cart{
		UserID:    userID,
		Items:     []CartLineItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Cart) indexOf(key LineKey) int {
	for i := range c.Items {
		if c.Items[i].Key() == key {
			return i
		}
	}
	return -1
}

// Find returns the line stored under key, if any.
func (c *Cart) Find(productID, size string) (CartLineItem, bool) {
	i := c.indexOf(LineKey{ProductID: productID, Size: size})
	if i < 0 {
		return CartLineItem{}, false
	}
	return c.Items[i], true
}

// AddItem increments the quantity of an existing line or appends a new one.
// Non-positive quantities are ignored.
func (c *Cart) AddItem(item CartLineItem, qty int) {
	if qty <= 0 {
		return
	}
	if i := c.indexOf(item.Key()); i >= 0 {
		c.Items[i].Quantity += qty
		c.touch()
		return
	}
	item.Quantity = qty
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	c.Items = append(c.Items, item)
	c.touch()
}

// SetQuantity overwrites the quantity of an existing line. A quantity of zero
// or less removes the line. It never creates a line.
func (c *Cart) SetQuantity(productID, size string, qty int) {
	i := c.indexOf(LineKey{ProductID: productID, Size: size})
	if i < 0 {
		return
	}
	if qty <= 0 {
		c.removeAt(i)
		return
	}
	c.Items[i].Quantity = qty
	c.touch()
}

// RemoveItem drops the line under key. Removing an absent line is a no-op.
func (c *Cart) RemoveItem(productID, size string) {
	if i := c.indexOf(LineKey{ProductID: productID, Size: size}); i >= 0 {
		c.removeAt(i)
	}
}

func (c *Cart) removeAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.touch()
}

// Merge folds other into c. Lines sharing a key have their quantities summed;
// new lines keep the order they had in other.
func (c *Cart) Merge(other *Cart) {
	if other == nil {
		return
	}
	for _, item := range other.Items {
		c.AddItem(item, item.Quantity)
	}
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Items = make([]CartLineItem, len(c.Items))
	copy(clone.Items, c.Items)
	return &clone
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// ItemCount is the sum of all line quantities.
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Normalize drops invalid lines and collapses duplicate keys. Carts decoded
// from storage go through it before use.
func (c *Cart) Normalize() {
	items := c.Items
	c.Items = make([]CartLineItem, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			continue
		}
		c.AddItem(item, item.Quantity)
	}
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now()
}
