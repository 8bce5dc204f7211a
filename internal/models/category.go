package models

// Category identifies an expense category. Stored as a stable string ID so
// the set can grow without schema changes.
type Category string

// Known expense categories.
const (
	CategoryGroceries     Category = "groceries"
	CategoryEatingOut     Category = "eating_out"
	CategoryTransport     Category = "transport"
	CategoryHousing       Category = "housing"
	CategoryTravel        Category = "travel"
	CategoryEntertainment Category = "entertainment"
	CategoryHealth        Category = "health"
	CategoryShopping      Category = "shopping"
	CategoryGifts         Category = "gifts"
	CategoryOther         Category = "other"
)

var knownCategories = map[Category]bool{
	CategoryGroceries:     true,
	CategoryEatingOut:     true,
	CategoryTransport:     true,
	CategoryHousing:       true,
	CategoryTravel:        true,
	CategoryEntertainment: true,
	CategoryHealth:        true,
	CategoryShopping:      true,
	CategoryGifts:         true,
	CategoryOther:         true,
}

// CategoryFromID maps a raw category string to a known Category,
// falling back to CategoryOther for unknown or empty input.
func CategoryFromID(id string) Category {
	if knownCategories[Category(id)] {
		return Category(id)
	}
	return CategoryOther
}
