// Package memory provides the knowledge store consulted by the final answer
// step: reference passages (response manuals, reports of past incidents)
// ranked by keyword overlap with the query.
//
// The store implements core.Retriever. Ranking is deliberately plain; swap in
// a vector index behind the same interface when better recall is needed.
package memory
