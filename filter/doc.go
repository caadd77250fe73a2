// Package filter parses JSON boolean filter expressions and compiles them,
// together with order_by terms, into SQL fragments for Bun select queries.
//
// An expression is a JSON object or array:
//
//	{"title.icontains": "dune"}
//	{"or": [{"status": "draft"}, {"author.name.startswith": "Frank"}]}
//	{"not": {"tags.name": "classic"}}
//	[{"pages.gte": 100}, {"price.lt": "~pages"}]
//
// Relation paths compile to correlated EXISTS subqueries so list results
// never contain duplicates.
package filter
