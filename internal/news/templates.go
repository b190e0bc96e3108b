package news

import "strings"

const DefaultCategory = "news"

var templates = map[string]string{
	"news":     "{metal} metal market news today",
	"mining":   "{metal} mining production output supply",
	"policy":   "{metal} trade policy tariff regulation export ban",
	"price":    "{metal} price forecast market analysis",
	"industry": "{metal} demand industry application downstream",
	"supply":   "{metal} supply chain smelting refinery inventory",
}

// SearchText renders the search string for q. Unknown categories use the
// general news template.
func SearchText(q Query) string {
	tpl, ok := templates[q.Category]
	if !ok {
		tpl = templates[DefaultCategory]
	}
	name := q.Name
	if name == "" {
		name = q.Symbol
	}
	text := strings.ReplaceAll(tpl, "{metal}", name)
	if q.Lang == "zh" {
		text += " 中文"
	}
	return text
}
