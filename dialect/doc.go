// Package dialect defines the connection provider strata runs statements
// through.
//
// A Driver executes parameterized statements built by dialect/sql and
// reports its dialect name, one of Postgres, MySQL or SQLite. The name
// selects placeholder style ($1 or ?) and identifier quoting; statements are
// otherwise identical across dialects.
//
// Records and queries never hold a Driver directly. They hold the
// ExecQuerier of the client or transaction that produced them, so a Tx can
// stand in for a Driver wherever statements are issued:
//
//	drv, err := sql.Open(dialect.Postgres, dsn)
//	if err != nil {
//	    return err
//	}
//	client, err := strata.NewClient(drv, strata.WithSchemas(User{}, Post{}))
//	...
//	err = client.WithTx(ctx, func(tx *strata.Tx) error {
//	    _, err := tx.MustModel("User").Create(ctx, map[string]any{"name": "a"})
//	    return err
//	})
//
// dialect/sql provides the builders and the database/sql adapter;
// dialect/sql/sqlgraph classifies constraint violations reported by the
// pq, mysql and sqlite drivers.
package dialect
