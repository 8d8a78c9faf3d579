package orders

import "fmt"

// Draft collects order lines before submission. Lines keep insertion order;
// adding a product that is already present grows its quantity instead, and
// must repeat the price the line was first added at.
type Draft struct {
	items []Item
}

func (d *Draft) AddItem(productID, productName string, quantity int, price float64, imageURL string) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if i := d.index(productID); i >= 0 {
		if d.items[i].Price != price {
			return fmt.Errorf("%w: %s at %v and %v", ErrPriceMismatch, productID, d.items[i].Price, price)
		}
		d.items[i].Quantity += quantity
		return nil
	}
	d.items = append(d.items, Item{
		ID:          NewItemID(),
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		Price:       price,
		ImageURL:    imageURL,
	})
	return nil
}

// SetQuantity replaces the quantity of a line. Zero removes the line.
func (d *Draft) SetQuantity(productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	i := d.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if quantity == 0 {
		d.items = append(d.items[:i], d.items[i+1:]...)
		return nil
	}
	d.items[i].Quantity = quantity
	return nil
}

func (d *Draft) Remove(productID string) {
	_ = d.SetQuantity(productID, 0)
}

func (d *Draft) Items() []Item {
	return append([]Item(nil), d.items...)
}

func (d *Draft) Len() int { return len(d.items) }

func (d *Draft) Total() float64 { return TotalOf(d.items) }

func (d *Draft) index(productID string) int {
	for i, it := range d.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}
