package fakecart

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML seed for a mock server:
//
//	catalog:
//	  - {product_id: 1001, title: iPhone 1, price: "499.00", image: iphone1.jpeg}
//	sessions:
//	  demo:
//	    - {product_id: 1001, quantity: 2}
type Fixture struct {
	Catalog  []CatalogEntry         `yaml:"catalog"`
	Sessions map[string][]SeedEntry `yaml:"sessions"`
}

// CatalogEntry is a product as written in YAML. Price is a decimal string.
type CatalogEntry struct {
	ProductID int64  `yaml:"product_id"`
	Title     string `yaml:"title"`
	Price     string `yaml:"price"`
	Image     string `yaml:"image"`
}

// SeedEntry is a cart line as written in YAML.
type SeedEntry struct {
	ProductID int64 `yaml:"product_id"`
	Quantity  int   `yaml:"quantity"`
}

// Products converts the catalog, validating prices.
func Products(entries []CatalogEntry) ([]Product, error) {
	products := make([]Product, 0, len(entries))
	seen := make(map[int64]bool, len(entries))
	for i, e := range entries {
		if seen[e.ProductID] {
			return nil, fmt.Errorf("catalog[%d]: duplicate product_id %d", i, e.ProductID)
		}
		seen[e.ProductID] = true

		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog[%d]: price %q: %w", i, e.Price, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("catalog[%d]: price %s is negative", i, price)
		}
		products = append(products, Product{ID: e.ProductID, Title: e.Title, Price: price, Image: e.Image})
	}
	return products, nil
}

//go:embed demo.yaml
var demoFixture []byte

// DemoFixture returns the built-in catalog with a "demo" session holding two
// rows and an "empty" session.
func DemoFixture() (*Fixture, error) {
	return parseFixture(demoFixture, "demo.yaml")
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return parseFixture(data, path)
}

func parseFixture(data []byte, name string) (*Fixture, error) {
	var f Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", name, err)
	}
	return &f, nil
}

// NewFromFixture creates a server with the fixture's catalog, sessions and
// seeded carts.
func NewFromFixture(f *Fixture, opts Options) (*Server, error) {
	products, err := Products(f.Catalog)
	if err != nil {
		return nil, err
	}
	opts.Catalog = append(opts.Catalog, products...)
	s := New(opts)

	for session, lines := range f.Sessions {
		s.Login(session)
		for _, l := range lines {
			if err := s.Seed(session, l.ProductID, l.Quantity); err != nil {
				return nil, fmt.Errorf("session %q: %w", session, err)
			}
		}
	}
	return s, nil
}
