package model

// Category groups recipes. The set is closed.
type Category string

const (
	Antipasti Category = "Antipasti"
	Primi     Category = "Primi"
	Secondi   Category = "Secondi"
	Dolci     Category = "Dolci"
	Altro     Category = "Altro"
)

// AllCategories is the filter value that matches every category.
const AllCategories = "Tutte"

// Categories lists the valid categories in display order.
var Categories = []Category{Antipasti, Primi, Secondi, Dolci, Altro}

// NormalizeCategory maps any input to a valid category.
// Unknown or empty values become Altro.
func NormalizeCategory(raw string) Category {
	for _, c := range Categories {
		if string(c) == raw {
			return c
		}
	}
	return Altro
}

// IsCategory reports whether raw is exactly one of Categories.
func IsCategory(raw string) bool {
	for _, c := range Categories {
		if string(c) == raw {
			return true
		}
	}
	return false
}
