// Package dishpal embeds the discount discovery engine in a Go program.
//
// Discounts are ranked either by geodesic distance from a point (or from a
// client IP) or by embedding distance to a free-text query. Without a
// database address everything lives in memory.
//
//	client, _ := dishpal.New(dishpal.WithEmbedder(myEmbedder, 384))
//	defer client.Close()
//	_, _ = client.Add(ctx, dishpal.Discount{
//	    RetailerName: "Forno Campo de' Fiori",
//	    Description:  "two pizzette for one",
//	    Code:         "PIZ2X1",
//	    Lat:          ptr(41.8956), Lon: ptr(12.4722),
//	})
//	near, _ := client.Discover().Near(41.89, 12.49).Km(2).Do(ctx)
//	similar, _ := client.Discover().Query("cheap pizza").Limit(5).Do(ctx)
//
// With WithValkey or WithRedis records go to the JSON catalog and vectors
// to an HNSW FT index on the same server.
package dishpal
