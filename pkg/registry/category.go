package registry

import "fmt"

// Category identifies a task domain used to pick a specialized backend.
// The set is closed; ParseCategory rejects anything else.
type Category string

const (
	CategoryCoding       Category = "coding"
	CategoryMath         Category = "math"
	CategoryConversation Category = "conversation"
	CategoryMultimodal   Category = "multimodal"
	CategoryGeneral      Category = "general"
)

// Categories returns every known category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryCoding,
		CategoryMath,
		CategoryConversation,
		CategoryMultimodal,
		CategoryGeneral,
	}
}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryCoding, CategoryMath, CategoryConversation, CategoryMultimodal, CategoryGeneral:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

func (c Category) String() string {
	return string(c)
}

// UnmarshalYAML validates categories read from catalog files.
func (c *Category) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseCategory(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
