package orders

import "time"

// DemoOrders returns two paid orders part way through fulfilment, for
// populating a fresh store in demos. They are not driven by a saga.
func DemoOrders(now time.Time) []Order {
	headphonesETA := now.Add(2 * 24 * time.Hour)
	watchETA := now.Add(3 * 24 * time.Hour)
	return []Order{
		{
			ID:            "ORD-001",
			CustomerID:    "CUST-001",
			CustomerName:  "John Smith",
			CustomerEmail: "john@example.com",
			Items: []Item{{
				ID:          "ITEM-001",
				ProductID:   "PROD-001",
				ProductName: "Wireless Headphones",
				Quantity:    1,
				Price:       99.99,
				ImageURL:    "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=100&h=100&fit=crop",
			}},
			TotalAmount:       99.99,
			Status:            StatusProcessing,
			PaymentStatus:     PaymentCompleted,
			CreatedAt:         now.Add(-30 * time.Minute),
			UpdatedAt:         now,
			EstimatedDelivery: &headphonesETA,
		},
		{
			ID:            "ORD-002",
			CustomerID:    "CUST-002",
			CustomerName:  "Sarah Johnson",
			CustomerEmail: "sarah@example.com",
			Items: []Item{{
				ID:          "ITEM-002",
				ProductID:   "PROD-002",
				ProductName: "Smart Watch",
				Quantity:    1,
				Price:       299.99,
				ImageURL:    "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=100&h=100&fit=crop",
			}},
			TotalAmount:       299.99,
			Status:            StatusConfirmed,
			PaymentStatus:     PaymentCompleted,
			CreatedAt:         now.Add(-time.Hour),
			UpdatedAt:         now,
			EstimatedDelivery: &watchETA,
		},
	}
}
