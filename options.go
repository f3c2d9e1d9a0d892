package tombstone

// Options accompanies every read and delete call.
type Options struct {
	// WithDeleted includes soft-deleted rows in reads.
	WithDeleted bool
	// HardDelete removes the row instead of marking it.
	HardDelete bool
	// Require fails a delete that affected no row with *NoRowsDeletedError.
	Require bool
	// Transacting runs reads and writes on an open transaction. The ORM never
	// commits or rolls it back.
	Transacting Tx

	// Set by the relation loader for eager sub-queries.
	eager          bool
	parentResponse bool
}

func firstOptions(opts []Options) Options {
	if len(opts) == 0 {
		return Options{}
	}
	return opts[0]
}

// cascadeOptions keeps only the transaction for cascaded reads and deletes.
func (o Options) cascadeOptions() Options {
	return Options{Transacting: o.Transacting}
}

// eagerOptions marks o as a nested eager sub-query. parent reports whether
// the parent query already produced rows.
func (o Options) eagerOptions(parent bool) Options {
	o.eager = true
	o.parentResponse = parent
	return o
}
