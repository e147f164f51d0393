// Package simsearch embeds the multi-attribute similarity search engine in a
// Go program, without the HTTP server.
//
// Attributes are mounted from named sources, then ranked together:
//
//	client, _ := simsearch.New(ctx, simsearch.WithCSV("hotels", "hotels.csv", ','))
//	defer client.Close()
//	_, _ = client.Mount(ctx, simsearch.Attribute{Name: "price", Kind: simsearch.Numerical, Source: "hotels", Key: "id"})
//	_, _ = client.Mount(ctx, simsearch.Attribute{
//	    Name: "loc", Kind: simsearch.Spatial, Source: "hotels", Key: "id",
//	    Columns: []string{"lon", "lat"}, Metric: simsearch.Haversine, Ingest: true,
//	})
//
//	res, _ := client.Search().
//	    Numerical("price", 120).Weight(0.7).
//	    Spatial("loc", 23.72, 37.98).Weight(0.3).
//	    Mode(simsearch.ModeThreshold).K(5).
//	    Do(ctx)
package simsearch
