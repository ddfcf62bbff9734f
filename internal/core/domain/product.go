package domain

import "time"

// DefaultImagePath is reported for products that have no image row.
const DefaultImagePath = "img/default.png"

type Product struct {
	ProdNo      int64     `json:"prodNo"`
	Name        string    `json:"prodName"`
	Description string    `json:"prodDes"`
	Category    int       `json:"prodCate"`
	Price       int64     `json:"prodPrice"`
	Count       int       `json:"prodCount"`
	Seller      string    `json:"prodSeller"`
	ImgPath     string    `json:"imgPath"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProductFields holds the mutable attributes of a product.
type ProductFields struct {
	Name        string
	Description string
	Category    int
	Price       int64
	Count       int
}

func (f ProductFields) Validate() error {
	if f.Name == "" || f.Description == "" || f.Category <= 0 {
		return ErrInvalidInput
	}
	if f.Price < 0 || f.Count < 0 {
		return ErrInvalidInput
	}
	return nil
}

type ProductImage struct {
	ImgNo  int64
	ProdNo int64
	Path   string
}

// ProductFilter narrows product listings. Zero values match everything.
type ProductFilter struct {
	Keyword  string
	Category int
}
