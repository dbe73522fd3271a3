package runner

import "math/rand"

// tagPalette holds the colors assigned to auto-created tags.
var tagPalette = []string{
	"#EF4444", // red
	"#F97316", // orange
	"#F59E0B", // amber
	"#10B981", // emerald
	"#06B6D4", // cyan
	"#3B82F6", // blue
	"#8B5CF6", // violet
	"#EC4899", // pink
}

// RandomTagColor picks a palette color for a newly created tag.
func RandomTagColor() string {
	return tagPalette[rand.Intn(len(tagPalette))]
}
