package adapter

import "github.com/p-n-ai/arandu-gateway/internal/keyword"

const (
	CategoryMath       = "Matemáticas"
	CategoryScience    = "Ciencias"
	CategoryTech       = "Tecnología"
	CategoryHumanities = "Humanidades"
	CategoryLanguages  = "Idiomas"
	CategoryGeneral    = "General"
)

type keywordGroup struct {
	label    string
	keywords []string
}

// Checked in order; the first group with a hit wins.
var categoryGroups = []keywordGroup{
	{CategoryMath, []string{"matemática", "álgebra", "cálculo"}},
	{CategoryScience, []string{"ciencia", "física", "química"}},
	{CategoryTech, []string{"programación", "código", "desarrollo"}},
	{CategoryHumanities, []string{"historia", "geografía"}},
	{CategoryLanguages, []string{"inglés", "español", "idioma"}},
}

var (
	beginnerKeywords = []string{"básico", "introducción", "fundamentos"}
	advancedKeywords = []string{"avanzado", "experto", "master"}
)

var thumbnails = map[string]string{
	CategoryMath:       "/placeholder-math.jpg",
	CategoryScience:    "/placeholder-science.jpg",
	CategoryTech:       "/placeholder-tech.jpg",
	CategoryHumanities: "/placeholder-humanities.jpg",
	CategoryLanguages:  "/placeholder-languages.jpg",
	CategoryGeneral:    "/placeholder-course.jpg",
}

// Categories lists every category MapCategory can return.
var Categories = []string{
	CategoryMath, CategoryScience, CategoryTech, CategoryHumanities, CategoryLanguages, CategoryGeneral,
}

// MapCategory guesses a course category from its name.
func MapCategory(name string) string {
	folded := keyword.Fold(name)
	for _, g := range categoryGroups {
		if keyword.ContainsAny(folded, g.keywords) {
			return g.label
		}
	}
	return CategoryGeneral
}

// MapLevel guesses a course level from its name. It is independent of
// MapCategory: one name can yield both a category and a level.
func MapLevel(name string) Level {
	folded := keyword.Fold(name)
	switch {
	case keyword.ContainsAny(folded, beginnerKeywords):
		return Beginner
	case keyword.ContainsAny(folded, advancedKeywords):
		return Advanced
	default:
		return Intermediate
	}
}

// CourseThumbnail returns the placeholder image for a course's category.
func CourseThumbnail(name string) string {
	if t, ok := thumbnails[MapCategory(name)]; ok {
		return t
	}
	return thumbnails[CategoryGeneral]
}
