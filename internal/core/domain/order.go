package domain

import "time"

type Order struct {
	OrdNo     int64     `json:"ordNo"`
	ProdNo    int64     `json:"prodNo"`
	Count     int       `json:"ordCount"`
	Buyer     string    `json:"ordBuyer"`
	Seller    string    `json:"ordSeller"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderSummary is an order as shown in a buyer's history.
type OrderSummary struct {
	OrdNo    int64  `json:"ordNo"`
	ProdNo   int64  `json:"prodNo"`
	Count    int    `json:"ordCount"`
	Buyer    string `json:"ordBuyer"`
	Seller   string `json:"ordSeller"`
	ProdName string `json:"prodName"`
	ImgPath  string `json:"imgPath"`
}
