// Package io provides JSON import and export for layout designs and run
// results.
//
// The design document format is a plain JSON object with chip dimensions,
// a "components" array, and a "nets" array. It round-trips through
// [ReadDesign] and [WriteDesign], so an exported design (including
// optimized positions) can be re-imported for further rounds.
package io
