package pipeline

import (
	"hash/fnv"

	"github.com/rossjameslee/hermes-api-demo/models"
)

// ComputeSeed derives the deterministic 64-bit seed driving category
// selection. Fields are folded with FNV-1a in a fixed, documented order:
// sku, merchant location key, fulfillment/payment/return policy ids, the
// marketplace tag, then the first three resolved image URLs. Each field is
// terminated by a zero byte so adjacent fields cannot alias.
func ComputeSeed(request *models.ListingRequest, images []string) uint64 {
	var hasher = fnv.New64a()
	var write = func(field string) {
		_, _ = hasher.Write([]byte(field))
		_, _ = hasher.Write([]byte{0})
	}
	write(request.SKU)
	write(request.MerchantLocationKey)
	write(request.FulfillmentPolicyID)
	write(request.PaymentPolicyID)
	write(request.ReturnPolicyID)
	write(string(request.Marketplace.OrDefault()))
	for i, image := range images {
		if i == 3 {
			break
		}
		write(image)
	}
	return hasher.Sum64()
}
