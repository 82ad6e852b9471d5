package usagecount

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/CloudNativeWorks/cnw-entitlement-sdk/cnwentitlement"
)

// FilterFunc builds the count filter for a limit evaluation.
type FilterFunc func(lc cnwentitlement.LimitContext) bson.M

// MongoCounter counts the documents of a collection matching a filter.
type MongoCounter struct {
	collection *mongo.Collection
	filter     FilterFunc
}

// NewMongoCounter creates a counter over collection. A nil filter counts every
// document.
func NewMongoCounter(collection *mongo.Collection, filter FilterFunc) *MongoCounter {
	return &MongoCounter{collection: collection, filter: filter}
}

// Filter returns the filter used for lc.
func (c *MongoCounter) Filter(lc cnwentitlement.LimitContext) bson.M {
	if c.filter == nil {
		return bson.M{}
	}
	return c.filter(lc)
}

func (c *MongoCounter) Count(ctx context.Context, lc cnwentitlement.LimitContext) (int, error) {
	count, err := c.collection.CountDocuments(ctx, c.Filter(lc))
	if err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return int(count), nil
}
