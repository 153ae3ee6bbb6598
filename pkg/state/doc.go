// Package state persists option bag snapshots per layer and resolves them
// into a single transformer options bag.
//
// Layers model where a setting comes from: shared defaults, a model, a
// workflow and a single run. The Resolver loads the snapshot of each
// requested layer and folds them with bag.Merge in the order given, so
// sequences (including hook registrations) accumulate earliest layer first
// and later layers override scalars.
//
// Data flow:
//
//	Store -> Resolver -> bag.Merge(...) -> *bag.Bag
//
// Store implementations only load and save one snapshot for one Ref.
// Ref.Identifier provides the canonical storage key:
//
//	defaults/<domain>
//	<layer>/<id>/<domain>
package state
