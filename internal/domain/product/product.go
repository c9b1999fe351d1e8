package product

// Product is a catalog entry an order can reference. The catalog itself is
// not managed by this service; orders only carry the id and a display name.
type Product struct {
	ID   int64
	Name string
}

// TestCatalog is the fixed set of products used to generate test orders.
var TestCatalog = []Product{
	{ID: 1, Name: "Produk A"},
	{ID: 2, Name: "Produk B"},
	{ID: 3, Name: "Produk C"},
	{ID: 4, Name: "Produk D"},
	{ID: 5, Name: "Produk E"},
}

// Pick returns the catalog entry at index i modulo the catalog length.
func Pick(catalog []Product, i int) Product {
	if len(catalog) == 0 {
		return Product{}
	}
	if i < 0 {
		i = -i
	}
	return catalog[i%len(catalog)]
}
