// Package core loads delimited records into persistent objects.
//
// The package is independent of any store, transport or UI. Callers declare
// what a line means and supply an [Adapter] that knows how to persist it;
// core does the rest.
//
// # Architecture
//
//   - Field specs: a [FieldSpec] locates one value in a line (by position or
//     header name), validates the raw string, cleans it and coerces it.
//   - Line loaders: a [LineLoader] evaluates its field specs, looks up an
//     existing record by its unique attributes and either updates it or
//     creates a new one, then publishes the record under its name.
//   - File loaders: a [FileLoader] streams a file line by line and runs every
//     line loader, in registration order, against each line.
//   - Registry: a [Registry] holds named file loaders for the CLI and HTTP
//     surfaces.
//
// # Declaring Loaders
//
//	customers := core.MustLineLoader(core.LineLoaderSpec{
//	    Name:   "customer",
//	    Unique: []string{"email"},
//	    Fields: []core.FieldSpec{
//	        core.Named("email", "Email").With(core.Tag("email")),
//	        core.Named("name", "Name"),
//	    },
//	    Clean: map[string]core.CleanFunc{"email": core.Chain(core.Trim, core.Lower)},
//	}, customerStore)
//
//	orders := core.MustLineLoader(core.LineLoaderSpec{
//	    Name:     "order",
//	    Requires: []string{"customer"},
//	    Fields: []core.FieldSpec{
//	        core.Named("number", "Order"),
//	        core.Named("amount", "Amount").As(core.PgNumeric),
//	    },
//	}, orderStore)
//
//	fl := core.NewFileLoader("customer_orders", customers, orders)
//	fl.Header = true
//	res, err := fl.Run(ctx, "orders.csv", nil)
//
// # Bindings
//
// Every line starts from a copy of the initial bindings passed to Run. Each
// line loader stores its record in the line's bindings, where later loaders
// of the same line can require it. Set [FileLoader.CarryBindings] to keep
// bindings from one line to the next instead.
//
// # Error Handling
//
// A failing line stops the run. The error is a [*LineError] carrying the line
// number and loader name; underneath is one of [DataFormatError],
// [ValidationError], [MissingContextError], a source.EncodingError or the
// adapter's own error, unchanged. [KindOf] classifies an error and [MapError]
// turns it into a coded, user-facing message:
//
//   - FMT001-FMT002: data format errors (missing field, bad value)
//   - VAL001: validation errors
//   - CTX001: missing context (loader ordering)
//   - FILE001-FILE003: file errors (not found, invalid CSV, encoding)
//   - DB001-DB005: store errors
//   - UPL004-UPL005: cancelled or timed out
package core
