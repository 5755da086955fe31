package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryCodeRoundTrip(t *testing.T) {
	for code := 0; code < CategoryCount; code++ {
		c := CategoryFromCode(code)
		require.True(t, c.Valid(), "code %d", code)
		assert.Equal(t, code, c.Code())

		parsed, ok := ParseCategory(c.String())
		require.True(t, ok)
		assert.Equal(t, c, parsed)
	}
}

func TestCategoryNamesCanonicalOrder(t *testing.T) {
	want := []string{
		"normal", "surcharge_cpu", "probleme_ram", "temperature_elevee",
		"secteurs_defectueux", "erreurs_systeme", "avertissements_systeme",
		"perte_paquets_reseau", "surchauffe_carte_mere", "surchauffe_gpu",
		"disque_fin_de_vie", "batterie_faible",
	}
	assert.Equal(t, want, CategoryNames())
	assert.Len(t, AllCategories(), CategoryCount)
}

func TestCategoryFromCode_OutOfRange(t *testing.T) {
	assert.Equal(t, CategoryUnknown, CategoryFromCode(-1))
	assert.Equal(t, CategoryUnknown, CategoryFromCode(12))
	assert.Equal(t, CategoryUnknown, CategoryFromCode(1000))
	assert.Equal(t, "inconnu", CategoryFromCode(42).String())
	assert.Equal(t, -1, CategoryUnknown.Code())
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Category
	}{
		{"int code", 1, CategoryCPUOverload},
		{"int64 code", int64(11), CategoryLowBattery},
		{"float code", float64(4), CategoryBadSectors},
		{"fractional float", 4.5, CategoryUnknown},
		{"digit string", "2", CategoryRAMPressure},
		{"padded digit string", " 3 ", CategoryHighTemperature},
		{"name", "surchauffe_gpu", CategoryGPUOverheat},
		{"upper case name", "NORMAL", CategoryNormal},
		{"json number", json.Number("7"), CategoryPacketLoss},
		{"json float number", json.Number("8.0"), CategoryMotherboardOverheat},
		{"unknown name", "meteor_strike", CategoryUnknown},
		{"unknown code", 99, CategoryUnknown},
		{"negative digit string", "-1", CategoryUnknown},
		{"empty", "", CategoryUnknown},
		{"nil", nil, CategoryUnknown},
		{"bool", true, CategoryUnknown},
		{"category passthrough", CategoryDiskEndOfLife, CategoryDiskEndOfLife},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCategory(tt.in))
		})
	}
}

func TestUnknownNeverNormal(t *testing.T) {
	for _, in := range []any{"", "x", 12, -3, 1.5, nil} {
		assert.NotEqual(t, CategoryNormal, NormalizeCategory(in), "input %v", in)
	}
}

func TestCategoryMetadata(t *testing.T) {
	assert.Equal(t, "fa-microchip", CategoryCPUOverload.Icon())
	assert.Equal(t, "danger", CategoryCPUOverload.Color())
	assert.Equal(t, "success", CategoryNormal.Color())
	assert.Equal(t, "warning", CategoryLowBattery.Color())
	assert.Equal(t, "fa-question-circle", CategoryUnknown.Icon())
	assert.Equal(t, "secondary", CategoryUnknown.Color())
	for _, c := range AllCategories() {
		assert.NotEmpty(t, c.HexColor())
		assert.NotEmpty(t, c.DisplayName())
	}
}

func TestCategoryJSON(t *testing.T) {
	b, err := json.Marshal(map[Category]float64{CategoryNormal: 90, CategoryCPUOverload: 10})
	require.NoError(t, err)
	assert.JSONEq(t, `{"normal":90,"surcharge_cpu":10}`, string(b))

	var byCode map[Category]float64
	require.NoError(t, json.Unmarshal([]byte(`{"0":55.5,"3":44.5}`), &byCode))
	assert.Equal(t, 55.5, byCode[CategoryNormal])
	assert.Equal(t, 44.5, byCode[CategoryHighTemperature])

	var doc struct {
		Label Category `json:"prediction"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"prediction":5}`), &doc))
	assert.Equal(t, CategorySystemErrors, doc.Label)
	require.NoError(t, json.Unmarshal([]byte(`{"prediction":"6"}`), &doc))
	assert.Equal(t, CategorySystemWarnings, doc.Label)
	require.NoError(t, json.Unmarshal([]byte(`{"prediction":"what"}`), &doc))
	assert.Equal(t, CategoryUnknown, doc.Label)
}

func FuzzNormalizeCategory(f *testing.F) {
	for _, s := range []string{"0", "11", "12", "normal", "batterie_faible", "", "-1", "9999999999999999999"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		c := NormalizeCategory(s)
		if c != CategoryUnknown && !c.Valid() {
			t.Fatalf("NormalizeCategory(%q) returned invalid category %d", s, c)
		}
	})
}
