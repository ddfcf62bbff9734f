package domain

type Question struct {
	QNo     int64    `json:"qNo"`
	Title   string   `json:"qTitle"`
	Content string   `json:"qContent"`
	Writer  string   `json:"qWriter"`
	Answers []Answer `json:"answers"`
}

type Answer struct {
	ANo     int64  `json:"aNo"`
	QNo     int64  `json:"qNo"`
	Content string `json:"aContent"`
	Writer  string `json:"aWriter"`
}
