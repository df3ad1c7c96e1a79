// Package quorum computes the canonical Raft quorum size.
package quorum

// Of returns the minimum number of votes needed to elect a leader out of a
// cluster of n nodes: floor(n/2)+1.
//
// The source this module descends from computes ceil(n/2)+1, which agrees
// with this for even n but over-counts by one for odd n (n=3 gives 2 here,
// 3 there). This implementation follows canonical Raft.
func Of(n int) int {
	return n/2 + 1
}
