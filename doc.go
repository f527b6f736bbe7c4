// Package trama retrieves documents by fusing lexical and vector similarity
// signals, and maintains a bounded-degree similarity graph between documents
// for multi-hop exploration.
//
// Search combines ranked lists from a BM25 lexical index and a vector oracle
// through reciprocal rank fusion or relative score fusion, with query-aware
// weights and an adaptively chosen RRF constant. Document writes trigger a
// relink that rebuilds the document's semantic neighborhood through mutual
// k-nearest-neighbor filtering, and a periodic community pass adds sparse
// bridge links between otherwise-disconnected clusters.
//
// The Client in this package wires the engines onto a Store backend
// (in-memory, Neo4j, or embedded Ladybug) and an embedding client:
//
//	store := store.NewMemoryStore()
//	client, err := trama.NewClient(store, embedderClient, config.Default(), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	results, err := client.Search(ctx, `"vector database" tuning`, 10)
package trama
