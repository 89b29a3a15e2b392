// Package lut owns the energy-shield delay-margin lookup table.
//
// Responsibilities: decoding and validating precomputed band records,
// building an immutable Table sorted by offset, and resolving
// (r, xi, beta) queries into a delay margin (deltaT).
// Key types: Params, Band, Table, Resolver.
//
// Resolution is nearest-band selection followed by a floor lookup in the
// band's (xi, beta) grid. Nothing is interpolated.
//
// A Table is never mutated after construction and may be shared by
// concurrent readers. No SQL or HTTP code belongs in this package.
package lut
