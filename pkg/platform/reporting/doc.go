/*
Package reporting reads lifecycle snapshots straight from the reporting
replica of the CRM database.

The aggregator uses it instead of the CRM HTTP API when a replica URL is
configured. Only the read side of each store is implemented; mutations always
go through the API so versions are checked in one place.

Pages are keyed by primary key:

	r, err := reporting.Open(reporting.Config{URL: os.Getenv("REPORTING_DATABASE_URL")})
	if err != nil {
		return err
	}
	defer r.Close()

	all, err := lifecycle.CollectAll(ctx, r.ListDeals)
*/
package reporting
