// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package losses

import "sort"

// TagMembers inverts per-node tag sets into per-tag member lists.
func TagMembers(tagSets [][]int, numTags int) [][]int {
	members := make([][]int, numTags)
	for node, tags := range tagSets {
		for _, t := range tags {
			members[t] = append(members[t], node)
		}
	}
	return members
}

// PositiveSets lists, for every node, the other nodes sharing at least
// one tag with it, sorted ascending. Tagless nodes get an empty list.
func PositiveSets(tagSets [][]int, numTags int) [][]int {
	members := TagMembers(tagSets, numTags)
	n := len(tagSets)
	positives := make([][]int, n)
	stamp := make([]int, n)
	for i := range stamp {
		stamp[i] = -1
	}
	for i, tags := range tagSets {
		for _, t := range tags {
			for _, j := range members[t] {
				if j == i || stamp[j] == i {
					continue
				}
				stamp[j] = i
				positives[i] = append(positives[i], j)
			}
		}
		sort.Ints(positives[i])
	}
	return positives
}
