package constants

import (
	"strings"
)

// Category is a physiological system used to group markers in an analysis.
type Category string

const (
	Blood         Category = "Blood Health"
	Metabolic     Category = "Metabolic Health"
	Heart         Category = "Heart Health"
	Liver         Category = "Liver Function"
	Kidney        Category = "Kidney Function"
	Thyroid       Category = "Thyroid Function"
	Hormones      Category = "Hormones"
	Immune        Category = "Immune System"
	Nutrition     Category = "Vitamins & Minerals"
	Electrolytes  Category = "Electrolytes"
	Inflammation  Category = "Inflammation"
	OtherCategory Category = "Other"
)

var allCategories = []Category{
	Blood, Metabolic, Heart, Liver, Kidney, Thyroid,
	Hormones, Immune, Nutrition, Electrolytes, Inflammation, OtherCategory,
}

// icons are tag names understood by the mobile client.
var icons = map[Category]string{
	Blood:         "water",
	Metabolic:     "flash",
	Heart:         "heart",
	Liver:         "medical",
	Kidney:        "fitness",
	Thyroid:       "pulse",
	Hormones:      "body",
	Immune:        "shield-checkmark",
	Nutrition:     "nutrition",
	Electrolytes:  "beaker",
	Inflammation:  "flame",
	OtherCategory: "document-text",
}

// CategoryNames returns the labels offered to the model.
func CategoryNames() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// IconTags returns the allowed icon tags offered to the model.
func IconTags() []string {
	out := make([]string, 0, len(allCategories))
	for _, cat := range allCategories {
		out = append(out, icons[cat])
	}
	return out
}

// Canonicalize maps a free-form section label onto a known category.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return OtherCategory, false
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	synonyms := []struct {
		needle string
		cat    Category
	}{
		{"blood count", Blood},
		{"hematolog", Blood},
		{"red blood", Blood},
		{"white blood", Immune},
		{"glucose", Metabolic},
		{"diabet", Metabolic},
		{"metabol", Metabolic},
		{"lipid", Heart},
		{"cholesterol", Heart},
		{"cardio", Heart},
		{"heart", Heart},
		{"liver", Liver},
		{"hepat", Liver},
		{"kidney", Kidney},
		{"renal", Kidney},
		{"thyroid", Thyroid},
		{"hormon", Hormones},
		{"immun", Immune},
		{"vitamin", Nutrition},
		{"iron", Nutrition},
		{"mineral", Nutrition},
		{"electrolyte", Electrolytes},
		{"inflamm", Inflammation},
	}
	for _, s := range synonyms {
		if strings.Contains(normalized, s.needle) {
			return s.cat, true
		}
	}
	return OtherCategory, false
}

// IconFor returns the icon tag for a section label.
func IconFor(label string) string {
	cat, _ := Canonicalize(label)
	return icons[cat]
}
