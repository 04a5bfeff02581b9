package domain

import "fmt"

// Category is the closed set of classification outcomes
type Category string

// enum of all categories, order matches the classifier label index
const (
	CategoryUnrest          Category = "unrest"
	CategoryPositive        Category = "positive"
	CategoryNaturalDisaster Category = "natural_disaster"
	CategoryOther           Category = "other"
)

var categoryNames = map[Category]string{
	CategoryUnrest:          "Terrorism/Protest/Political Unrest/Riot",
	CategoryPositive:        "Positive/Uplifting",
	CategoryNaturalDisaster: "Natural Disasters",
	CategoryOther:           "Others",
}

// AllCategories returns all categories in label order, Other is last
func AllCategories() []Category {
	return []Category{CategoryUnrest, CategoryPositive, CategoryNaturalDisaster, CategoryOther}
}

// CategoryFromIndex maps a label index to a category. It is total: every index
// outside of 0..2, negatives included, maps to CategoryOther.
func CategoryFromIndex(idx int) Category {
	switch idx {
	case 0:
		return CategoryUnrest
	case 1:
		return CategoryPositive
	case 2:
		return CategoryNaturalDisaster
	default:
		return CategoryOther
	}
}

// Name returns human-readable category name used in reports and logs
func (c Category) Name() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// ParseCategory converts stored category value back to Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := categoryNames[c]; !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
