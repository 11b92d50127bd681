// Package featsyn provides automated feature engineering for relational
// tabular data.
//
// Usage:
//
//	import (
//	    "github.com/marcin-laskowski/Feature-Engineering/entityset"
//	    "github.com/marcin-laskowski/Feature-Engineering/synth"
//	)
//
//	es := entityset.New("clients")
//	es.AddEntity("clients", clientsFrame, entityset.WithIndex("client_id"),
//	    entityset.WithTimeIndex("joined"))
//	es.AddEntity("loans", loansFrame, entityset.WithIndex("loan_id"),
//	    entityset.WithTimeIndex("loan_start"))
//	es.AddRelationship("clients", "client_id", "loans", "client_id")
//
//	matrix, err := synth.DFS(ctx, es, "clients", synth.WithMaxDepth(2))
//
// The synth package stacks aggregation and transform primitives across
// entity relationships to build a feature matrix for a target entity.
// Column types are inferred from raw CSV data by the schema package, and
// the helpers package turns CSV bytes into frames. All computation is
// local — no external service is ever called.
package featsyn
