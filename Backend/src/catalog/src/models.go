package main

// Product is what the storefront lists. Price is in reais, as the UI
// formats it.
type Product struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

type Stock struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

type stockUpdate struct {
	Amount *int `json:"amount"`
}
