package news

// Article is one search hit shown in the news panel.
type Article struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Body   string `json:"body"`
	Date   string `json:"date"`
	Source string `json:"source"`
	Image  string `json:"image"`
}

type Result struct {
	Symbol   string    `json:"symbol"`
	Category string    `json:"category"`
	Articles []Article `json:"articles"`
}

// Query is a news lookup as received from the dashboard.
type Query struct {
	Symbol   string
	Category string
	Lang     string
	// Name is the display name searched for; defaults to Symbol.
	Name string
}
