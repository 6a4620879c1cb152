// Package codec implements the image placeholder codec.
//
// The rewrite service is text-oriented and unreliable at preserving opaque
// binary-referencing markup: image attributes get reordered, elements get
// dropped, content gets summarized. The codec removes that risk by never
// exposing image elements to the rewrite step. Extract swaps each image for
// an inert placeholder carrying a deterministic id; Restore finds those
// placeholders again after rewriting with a tiered, attribute-tolerant
// matching strategy and reinserts the original images.
package codec
