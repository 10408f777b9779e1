// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package backend

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/davech88/reclens/internal/orchestrate"
)

// EngineStatusResponse is the wire format of GET /ml/status.
type EngineStatusResponse struct {
	IsTrained         bool     `json:"is_trained"`
	TrainingTimestamp string   `json:"training_timestamp,omitempty"`
	Algorithms        []string `json:"algorithms,omitempty"`
}

// ToStatus converts the wire response into an engine status snapshot.
// An unparseable training timestamp leaves TrainedAt zero; the trained
// flag is what routing acts on.
func (r *EngineStatusResponse) ToStatus(fetchedAt time.Time) orchestrate.EngineStatus {
	status := orchestrate.EngineStatus{
		IsTrained:  r.IsTrained,
		Algorithms: r.Algorithms,
		FetchedAt:  fetchedAt,
	}
	if r.TrainingTimestamp != "" {
		if ts, err := time.Parse(time.RFC3339, r.TrainingTimestamp); err == nil {
			status.TrainedAt = ts
		}
	}
	return status
}

// TrainResponse is the wire format of POST /ml/train.
type TrainResponse struct {
	SuccessfulModels int    `json:"successful_models"`
	TotalModels      int    `json:"total_models"`
	Message          string `json:"message,omitempty"`
}

// ProductRecommendation is one recommended product as returned by either
// endpoint family.
type ProductRecommendation struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Score       float64 `json:"score"`
}

// ProductsResponse wraps product recommendation lists
// (GET /ml/collaborative-products, GET /analytics/collaborative-products).
type ProductsResponse struct {
	Products []ProductRecommendation `json:"products"`
}

// PersonalizeResponse is the wire format of
// GET /personalize/recommendations/{customer_id}.
type PersonalizeResponse struct {
	Recommendations []ProductRecommendation `json:"recommendations"`
}

// SimilarCustomer is one entry of a customer similarity result.
// ActualRecommendations is backend-defined and passed through untouched.
type SimilarCustomer struct {
	CustomerID            string          `json:"customer_id"`
	SimilarityScore       float64         `json:"similarity_score"`
	SharedProducts        int             `json:"shared_products,omitempty"`
	ActualRecommendations json.RawMessage `json:"actual_recommendations,omitempty"`
}

// SimilarityResponse is the wire format of GET /ml/customer-similarity and
// its SQL counterpart.
type SimilarityResponse struct {
	Customers []SimilarCustomer `json:"customers"`
}

// RFMSegment is one RFM segment summary.
type RFMSegment struct {
	Segment       string  `json:"segment"`
	CustomerCount int     `json:"customer_count"`
	AvgRecency    float64 `json:"avg_recency"`
	AvgFrequency  float64 `json:"avg_frequency"`
	AvgMonetary   float64 `json:"avg_monetary"`
}

// RFMSegmentsResponse is the wire format of GET /ml/rfm-segments.
type RFMSegmentsResponse struct {
	Segments []RFMSegment `json:"segments"`
}

// CustomerSummary is one customer within a region or segment, used as a
// fan-out unit.
type CustomerSummary struct {
	CustomerID string  `json:"customer_id"`
	TotalSpend float64 `json:"total_spend"`
}

// CustomersResponse is the wire format of GET /analytics/customers.
type CustomersResponse struct {
	Customers []CustomerSummary `json:"customers"`
}

// toItems converts product recommendations into orchestration items,
// stamped with the entity they were fetched for (empty for group-level
// fetches). Source tagging happens in the router.
func toItems(products []ProductRecommendation, entityID string) []orchestrate.RecommendationItem {
	items := make([]orchestrate.RecommendationItem, 0, len(products))
	for _, p := range products {
		items = append(items, orchestrate.RecommendationItem{
			EntityID:    entityID,
			ProductID:   p.ProductID,
			ProductName: p.ProductName,
			Score:       p.Score,
		})
	}
	return items
}

// toEntities converts customer summaries into fan-out entities.
func toEntities(customers []CustomerSummary) []orchestrate.Entity {
	entities := make([]orchestrate.Entity, 0, len(customers))
	for _, c := range customers {
		entities = append(entities, orchestrate.Entity{ID: c.CustomerID, Value: c.TotalSpend})
	}
	return entities
}
