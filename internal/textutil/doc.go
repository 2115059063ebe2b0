// Package textutil provides label normalization and label distance for
// matching annotations across two versions of a transcript, plus filename
// tokens derived from graph ids.
//
// Labels are compared after Unicode case folding and canonical composition,
// with punctuation and spacing removed, so "Dog," and "dog" match. Very short
// labels are matched more strictly because a single edit changes most of
// their content.
package textutil
