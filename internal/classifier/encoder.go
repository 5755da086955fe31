package classifier

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// LabelEncoder maps the model's class indices to categories. Training
// pipelines usually sort class names, so index order need not match the
// category code order.
type LabelEncoder struct {
	classes []model.Category
}

// NewLabelEncoder builds an encoder from class names or digit codes in
// model output order. Every entry must name a real category exactly once.
func NewLabelEncoder(names []string) (*LabelEncoder, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("label encoder has no classes")
	}
	seen := make(map[model.Category]bool, len(names))
	classes := make([]model.Category, len(names))
	for i, n := range names {
		c := model.NormalizeCategory(n)
		if !c.Valid() {
			return nil, fmt.Errorf("class %d: unknown category %q", i, n)
		}
		if seen[c] {
			return nil, fmt.Errorf("class %d: duplicate category %q", i, n)
		}
		seen[c] = true
		classes[i] = c
	}
	return &LabelEncoder{classes: classes}, nil
}

// IdentityEncoder maps index i to the category with code i.
func IdentityEncoder() *LabelEncoder {
	return &LabelEncoder{classes: model.AllCategories()}
}

// LoadLabelEncoder reads a labels file: either a JSON array of names or an
// object with a "classes" array.
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading labels file: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		var wrapped struct {
			Classes []string `json:"classes"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("parsing labels file %s: %w", path, err)
		}
		names = wrapped.Classes
	}

	enc, err := NewLabelEncoder(names)
	if err != nil {
		return nil, fmt.Errorf("labels file %s: %w", path, err)
	}
	return enc, nil
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int { return len(e.classes) }

// Decode maps a class index to its category.
func (e *LabelEncoder) Decode(code int) (model.Category, error) {
	if code < 0 || code >= len(e.classes) {
		return model.CategoryUnknown, fmt.Errorf("class index %d out of range [0,%d)", code, len(e.classes))
	}
	return e.classes[code], nil
}
