package hsuf

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rossjameslee/hermes-api-demo/llm"
)

func TestStripMarkdownFence(t *testing.T) {
	require.Equal(t, `{"name":"x"}`, StripMarkdownFence("```json\n{\"name\":\"x\"}\n```"))
	require.Equal(t, `{"name":"x"}`, StripMarkdownFence("```\n{\"name\":\"x\"}\n```\ntrailing prose"))
	require.Equal(t, `{"name":"x"}`, StripMarkdownFence("  {\"name\":\"x\"}  "))
}

func TestNormalizeProductValueDefaults(t *testing.T) {
	var obj = map[string]any{"name": "  "}
	NormalizeProductValue(obj, []string{"https://img/1", "https://img/2"})

	require.Equal(t, "Untitled Product", obj["name"])
	require.NotEmpty(t, obj["sku"])
	require.Equal(t, []any{"https://img/1", "https://img/2"}, obj["image"])

	offers, ok := obj["offers"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "49.99", offers["price"])
	require.Equal(t, "USD", offers["priceCurrency"])
	require.Equal(t, "https://schema.org/UsedCondition", offers["itemCondition"])
}

func TestNormalizeProductValueKeepsProvidedFields(t *testing.T) {
	var obj = map[string]any{
		"name":   "Kept",
		"sku":    "sku-9",
		"image":  "https://img/solo",
		"offers": map[string]any{"price": 12.5, "priceCurrency": "GBP"},
	}
	NormalizeProductValue(obj, []string{"https://img/other"})

	require.Equal(t, "Kept", obj["name"])
	require.Equal(t, "sku-9", obj["sku"])
	require.Equal(t, "https://img/solo", obj["image"])
	offers := obj["offers"].(map[string]any)
	require.Equal(t, 12.5, offers["price"])
	require.Equal(t, "GBP", offers["priceCurrency"])
}

func TestNormalizeProductValueCapsImageFill(t *testing.T) {
	var images []string
	for i := 0; i < 9; i++ {
		images = append(images, "https://img/x")
	}
	var obj = map[string]any{"image": []any{}}
	NormalizeProductValue(obj, images)
	require.Len(t, obj["image"], 6)
}

func TestFallbackProductDeterministic(t *testing.T) {
	var first = FallbackProduct("sku-77", []string{"https://img/1"})
	var second = FallbackProduct("sku-77", []string{"https://img/1"})

	require.Equal(t, first, second)
	require.Equal(t, "sku-77 listing", first.Name)
	require.Equal(t, "sku-77", first.SKU)
	require.Equal(t, "MPN-sku-77", first.MPN)
	require.NotNil(t, first.Offers.Price)
	require.Equal(t, 99.0, float64(*first.Offers.Price))
	require.Equal(t, []string{"https://img/1"}, first.Image.AsSlice())

	pounds, ok := WeightToPounds(first.Weight)
	require.True(t, ok)
	require.Equal(t, 3.0, pounds)
}

func TestInferProductParsesFencedGatewayOutput(t *testing.T) {
	var gateway = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var fenced = "```json\n{\"name\":\"Gateway Product\",\"offers\":{\"price\":\"19.99\"}}\n```"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": fenced}},
		})
	}))
	defer gateway.Close()

	var client = llm.NewClient(gateway.Client(), llm.Config{GatewayURL: gateway.URL})
	product, err := InferProduct(context.Background(), client, "sku-1", []string{"https://img/1"})
	require.NoError(t, err)
	require.Equal(t, "Gateway Product", product.Name)
	require.NotNil(t, product.Offers.Price)
	require.Equal(t, 19.99, float64(*product.Offers.Price))
	require.Equal(t, []string{"https://img/1"}, product.Image.AsSlice())
}

func TestInferProductRejectsEmptyImages(t *testing.T) {
	var client = llm.NewClient(http.DefaultClient, llm.Config{GatewayURL: "http://localhost:0"})
	_, err := InferProduct(context.Background(), client, "sku-1", nil)
	require.Error(t, err)
}

func TestInferProductUnparsableOutput(t *testing.T) {
	var gateway = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"not json at all"}]}`))
	}))
	defer gateway.Close()

	var client = llm.NewClient(gateway.Client(), llm.Config{GatewayURL: gateway.URL})
	_, err := InferProduct(context.Background(), client, "sku-1", []string{"https://img/1"})
	require.ErrorIs(t, err, ErrUnparsableProduct)
}
