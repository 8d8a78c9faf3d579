package inventory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Products []Item `yaml:"products"`
}

// DefaultSeed is the demo catalogue stock used when no seed file is given.
func DefaultSeed() []Item {
	return []Item{
		{ProductID: "PROD-001", ProductName: "Wireless Headphones", Available: 25, ReorderLevel: 10},
		{ProductID: "PROD-002", ProductName: "Smart Watch", Available: 15, ReorderLevel: 5},
		{ProductID: "PROD-003", ProductName: "Bluetooth Speaker", Available: 30, ReorderLevel: 8},
		{ProductID: "PROD-004", ProductName: "Laptop Stand", Available: 8, ReorderLevel: 15},
	}
}

// LoadSeed reads products from a YAML file of the form
//
//	products:
//	  - product_id: PROD-001
//	    product_name: Wireless Headphones
//	    available: 25
//	    reorder_level: 10
func LoadSeed(path string) ([]Item, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(b)
}

func ParseSeed(b []byte) ([]Item, error) {
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return f.Products, nil
}

// Seed registers every item on the ledger.
func (l *Ledger) Seed(items []Item) error {
	for _, it := range items {
		if err := l.AddProduct(it); err != nil {
			return fmt.Errorf("seed %s: %w", it.ProductID, err)
		}
	}
	return nil
}
