package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Category is one of the twelve health classifications a host can be in.
// The integer value is the dense code shared by the classifier, the service
// and the dashboard. CategoryUnknown is a sentinel and never a model output.
type Category int

const (
	CategoryUnknown Category = -1

	CategoryNormal              Category = 0
	CategoryCPUOverload         Category = 1
	CategoryRAMPressure         Category = 2
	CategoryHighTemperature     Category = 3
	CategoryBadSectors          Category = 4
	CategorySystemErrors        Category = 5
	CategorySystemWarnings      Category = 6
	CategoryPacketLoss          Category = 7
	CategoryMotherboardOverheat Category = 8
	CategoryGPUOverheat         Category = 9
	CategoryDiskEndOfLife       Category = 10
	CategoryLowBattery          Category = 11
)

// CategoryCount is the number of real categories (codes 0..CategoryCount-1).
const CategoryCount = 12

type categoryInfo struct {
	name    string // wire name
	display string
	icon    string // Font Awesome class
	color   string // Bootstrap contextual color
	hex     string // chart palette
}

// categoryTable is indexed by code. It is the only place the code<->name
// mapping exists.
var categoryTable = [CategoryCount]categoryInfo{
	{"normal", "Normal", "fa-check-circle", "success", "#2ecc71"},
	{"surcharge_cpu", "CPU overload", "fa-microchip", "danger", "#e74c3c"},
	{"probleme_ram", "RAM pressure", "fa-memory", "danger", "#f39c12"},
	{"temperature_elevee", "High temperature", "fa-temperature-high", "warning", "#d35400"},
	{"secteurs_defectueux", "Bad sectors", "fa-hdd", "danger", "#c0392b"},
	{"erreurs_systeme", "System errors", "fa-bug", "danger", "#9b59b6"},
	{"avertissements_systeme", "System warnings", "fa-exclamation-triangle", "warning", "#f1c40f"},
	{"perte_paquets_reseau", "Packet loss", "fa-network-wired", "danger", "#3498db"},
	{"surchauffe_carte_mere", "Motherboard overheat", "fa-server", "danger", "#e84393"},
	{"surchauffe_gpu", "GPU overheat", "fa-gamepad", "danger", "#e17055"},
	{"disque_fin_de_vie", "Disk end of life", "fa-hard-drive", "warning", "#7f8c8d"},
	{"batterie_faible", "Low battery", "fa-battery-quarter", "warning", "#fdcb6e"},
}

var unknownInfo = categoryInfo{"inconnu", "Unknown", "fa-question-circle", "secondary", "#95a5a6"}

var categoryByName = func() map[string]Category {
	m := make(map[string]Category, CategoryCount)
	for i, info := range categoryTable {
		m[info.name] = Category(i)
	}
	return m
}()

// AllCategories returns the twelve categories in code order.
func AllCategories() []Category {
	out := make([]Category, CategoryCount)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// CategoryNames returns the wire names in code order.
func CategoryNames() []string {
	out := make([]string, CategoryCount)
	for i, info := range categoryTable {
		out[i] = info.name
	}
	return out
}

// CategoryFromCode decodes a dense code. Out-of-range codes yield CategoryUnknown.
func CategoryFromCode(code int) Category {
	if code < 0 || code >= CategoryCount {
		return CategoryUnknown
	}
	return Category(code)
}

// ParseCategory decodes a wire name. Unrecognised names yield CategoryUnknown
// and ok=false.
func ParseCategory(name string) (Category, bool) {
	c, ok := categoryByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return CategoryUnknown, false
	}
	return c, true
}

// NormalizeCategory accepts a label in any of the encodings seen on the wire:
// a Category, an integer code, a float holding an integral code, a digit
// string, or a name. Anything else is CategoryUnknown, never CategoryNormal.
func NormalizeCategory(v any) Category {
	switch x := v.(type) {
	case Category:
		if x.Valid() {
			return x
		}
		return CategoryUnknown
	case int:
		return CategoryFromCode(x)
	case int32:
		return CategoryFromCode(int(x))
	case int64:
		return CategoryFromCode(int(x))
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return CategoryUnknown
		}
		return CategoryFromCode(int(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return CategoryUnknown
		}
		return NormalizeCategory(f)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return CategoryUnknown
		}
		if isDigits(s) {
			n, err := strconv.Atoi(s)
			if err != nil {
				return CategoryUnknown
			}
			return CategoryFromCode(n)
		}
		c, _ := ParseCategory(s)
		return c
	default:
		return CategoryUnknown
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Valid reports whether c is one of the twelve real categories.
func (c Category) Valid() bool { return c >= 0 && c < CategoryCount }

// Code returns the dense integer code, or -1 for CategoryUnknown.
func (c Category) Code() int {
	if !c.Valid() {
		return -1
	}
	return int(c)
}

func (c Category) info() categoryInfo {
	if !c.Valid() {
		return unknownInfo
	}
	return categoryTable[c]
}

func (c Category) String() string { return c.info().name }

// DisplayName is the human readable label used by the dashboard.
func (c Category) DisplayName() string { return c.info().display }

// Icon is the Font Awesome icon class for c.
func (c Category) Icon() string { return c.info().icon }

// Color is the Bootstrap contextual color (success, warning, danger, secondary).
func (c Category) Color() string { return c.info().color }

// HexColor is the fixed chart palette color for c.
func (c Category) HexColor() string { return c.info().hex }

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts names and digit codes. Unrecognised input decodes to
// CategoryUnknown without error so a single bad label never fails a whole
// document.
func (c *Category) UnmarshalText(b []byte) error {
	*c = NormalizeCategory(string(b))
	return nil
}

// UnmarshalJSON additionally accepts bare JSON numbers.
func (c *Category) UnmarshalJSON(b []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decoding category: %w", err)
	}
	*c = NormalizeCategory(v)
	return nil
}
