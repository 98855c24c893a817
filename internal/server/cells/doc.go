// Package cells implements the per-identifier memo lifecycle.
//
// A Locator hands out Cell handles. All handles for one identifier share a
// single serialization slot, so Create, Read, Peek and Expire on the same
// identifier never interleave, while different identifiers proceed in
// parallel. Expiry is driven by per-identifier timers (Timers) and a periodic
// Sweeper; every operation also checks expiry lazily, so a late or lost
// timer never makes an expired memo readable.
package cells
