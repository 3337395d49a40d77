package ebay

// ListingPolicies is the policy triple attached to an offer.
type ListingPolicies struct {
	FulfillmentPolicyID string `json:"fulfillmentPolicyId"`
	PaymentPolicyID     string `json:"paymentPolicyId"`
	ReturnPolicyID      string `json:"returnPolicyId"`
}

// ListingDraft is the intermediate shape produced by the hsuf transform and
// consumed when assembling inventory/offer payloads.
type ListingDraft struct {
	SKU         string              `json:"sku"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Price       float64             `json:"price"`
	Currency    string              `json:"currency"`
	CategoryID  string              `json:"categoryId"`
	Quantity    int                 `json:"quantity"`
	Aspects     map[string][]string `json:"aspects"`
	Images      []string            `json:"images"`
}

// PackagePayload carries the estimated package weight and size.
type PackagePayload struct {
	PackageWeight WeightPayload     `json:"packageWeight"`
	PackageSize   DimensionsPayload `json:"packageSize"`
}

type WeightPayload struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type DimensionsPayload struct {
	Height float64 `json:"height"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Unit   string  `json:"unit"`
}
