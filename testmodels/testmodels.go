// Package testmodels holds shared entity types used by tests across the
// module.
package testmodels

import "github.com/go-openapi/strfmt"

// Customer is a hash-key-only entity.
type Customer struct {
	ID       string           `dynamodbav:"id" json:"id"`
	Email    string           `dynamodbav:"email" json:"email"`
	Name     string           `dynamodbav:"name" json:"name"`
	JoinedAt *strfmt.DateTime `dynamodbav:"joined_at,omitempty" json:"joinedAt,omitempty"`
}

// Order is a hash+range entity keyed by customer and order ID.
type Order struct {
	CustomerID string   `dynamodbav:"customer_id" json:"customerId"`
	OrderID    string   `dynamodbav:"order_id" json:"orderId"`
	Status     string   `dynamodbav:"status" json:"status"`
	Total      float64  `dynamodbav:"total" json:"total"`
	Lines      []string `dynamodbav:"lines,omitempty" json:"lines,omitempty"`
}
