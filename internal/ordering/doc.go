// Package ordering sorts anchors and annotations of one graph.
//
// Raw offsets are not enough to order anchors once several of them share an
// offset or have none at all, so the comparators fall back on graph topology:
// reachability through shared anchors, the offsets of neighbouring anchors,
// sibling ordinals and the layer hierarchy. Every comparator here is total and
// antisymmetric for any pair of entities in the same graph.
package ordering
