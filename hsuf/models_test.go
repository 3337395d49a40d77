package hsuf

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlexibleNumberDecode(t *testing.T) {
	var n FlexibleNumber
	require.NoError(t, json.Unmarshal([]byte(`12.5`), &n))
	require.Equal(t, 12.5, float64(n))

	require.NoError(t, json.Unmarshal([]byte(`"49.99"`), &n))
	require.Equal(t, 49.99, float64(n))

	require.Error(t, json.Unmarshal([]byte(`"cheap"`), &n))
	require.Error(t, json.Unmarshal([]byte(`true`), &n))
}

func TestImageFieldDecode(t *testing.T) {
	var f ImageField
	require.NoError(t, json.Unmarshal([]byte(`"https://img/1"`), &f))
	require.Equal(t, []string{"https://img/1"}, f.AsSlice())

	require.NoError(t, json.Unmarshal([]byte(`["https://img/1","https://img/2"]`), &f))
	require.Equal(t, []string{"https://img/1", "https://img/2"}, f.AsSlice())

	require.Error(t, json.Unmarshal([]byte(`{"url":"x"}`), &f))
}

func TestSizeFieldDecode(t *testing.T) {
	var f SizeField
	require.NoError(t, json.Unmarshal([]byte(`"US 10"`), &f))
	require.Equal(t, "US 10", f.Resolve())

	require.NoError(t, json.Unmarshal([]byte(`{"value": 10.5, "unitCode": "INH"}`), &f))
	require.NotNil(t, f.Quantitative)
	require.Equal(t, "10.5", f.Resolve())

	require.NoError(t, json.Unmarshal([]byte(`{"name": "Large", "sizeSystem": "US"}`), &f))
	require.NotNil(t, f.Specification)
	require.Equal(t, "Large", f.Resolve())
}

func TestProductDecodeTolerantFields(t *testing.T) {
	var raw = `{
		"name": "Trail Runner",
		"image": "https://img/1",
		"offers": {"price": "89.00", "priceCurrency": "USD"},
		"size": {"value": 11, "unitCode": "INH"},
		"weight": {"unitText": "Pounds", "value": 2.4}
	}`
	var product Product
	require.NoError(t, json.Unmarshal([]byte(raw), &product))
	require.Equal(t, []string{"https://img/1"}, product.Image.AsSlice())
	require.Equal(t, 89.0, float64(*product.Offers.Price))

	pounds, ok := WeightToPounds(product.Weight)
	require.True(t, ok)
	require.Equal(t, 2.4, pounds)
}
