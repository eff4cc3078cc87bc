// Package patch turns model-authored edit descriptions into exact file mutations.
//
// Two encodings are supported: SEARCH/REPLACE marker blocks, applied as literal
// first-occurrence substitutions, and unified-diff hunks produced by an LCS line
// differ and consumed by a strict hunk applier. Neither pipeline does approximate
// matching: an edit that does not apply exactly is reported as an error and the
// target file is left untouched.
package patch
