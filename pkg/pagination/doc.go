// Package pagination fetches a bounded number of records from a paged
// SODA resource.
//
// Example usage:
//
//	c, _ := client.New(client.DefaultConfig("my-app/1.0"))
//	fetcher, _ := pagination.NewFetcher(pagination.ClientOpener(c), pagination.Config{
//		Resource:    "r5kz-chrr.json",
//		OrderBy:     "id",
//		MaxPageSize: 1000,
//		Schema:      schema.New(schema.Column{Name: "id", Type: schema.String}),
//	})
//	licenses, err := fetcher.Fetch(ctx, 3000)
//
// The fetcher:
//   - Opens one client session and closes it on every exit path
//   - Uses a page size of min(MaxPageSize, n) and never asks for more than
//     the records still missing
//   - Requests pages sequentially at increasing offsets with a fixed $order
//   - Stops after n records or at the first short page
//   - Validates the concatenated table and returns all of it or nothing
//
// Pages are not taken from a consistent snapshot: records written upstream
// while a multi-page fetch is running may be duplicated or skipped.
package pagination
