package gsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestBalanceClusters_SimplePair(t *testing.T) {
	t.Parallel()

	delta := []float64{0, 300, 0, -300, 0, 302, 0, -298}
	clusters := [][]int{{7, 3}, {1, 5}}

	res := BalanceClusters(delta, clusters, 2)

	assert.Equal(t, [][]int{{1, 5}, {3, 7}}, res.Clusters, "sorted by descending mean, members ascending")
	assert.Equal(t, []ClusterPair{{Positive: 0, Negative: 1}}, res.Pairs)
	assert.Equal(t, 2, res.SeedsBeforeBalancing)
	assert.Equal(t, 2, res.SeedsAfterBalancing)
	assert.Zero(t, res.Iterations)
	assert.InDelta(t, 301, res.Stats[0].Mean, 1e-9)
	assert.InDelta(t, -299, res.Stats[1].Mean, 1e-9)
}

func TestBalanceClusters_NoSeedClusters(t *testing.T) {
	t.Parallel()

	delta := []float64{300, -300, 150}
	clusters := [][]int{{0}, {1}, {2}}

	res := BalanceClusters(delta, clusters, 3)

	assert.Empty(t, res.Pairs)
	assert.Len(t, res.Clusters, 3, "clusters are kept unmerged")
	assert.Zero(t, res.SeedsBeforeBalancing)
	assert.Zero(t, res.SeedsAfterBalancing)
}

func TestBalanceClusters_AbsorbsSmallClusters(t *testing.T) {
	t.Parallel()

	delta := []float64{299, 300, 301, -299, -300, -301, 305, -1200}
	clusters := [][]int{{0, 1, 2}, {3, 4, 5}, {6}, {7}}

	res := BalanceClusters(delta, clusters, 3)

	require.Len(t, res.Clusters, 2)
	assert.Equal(t, []int{0, 1, 2, 6}, res.Clusters[0])
	assert.Equal(t, []int{3, 4, 5, 7}, res.Clusters[1])
	assert.Equal(t, 4, res.Stats[0].Count)
	assert.Equal(t, []ClusterPair{{Positive: 0, Negative: 1}}, res.Pairs)
}

func TestBalanceClusters_PolarityBalancing(t *testing.T) {
	t.Parallel()

	delta := []float64{
		300, 300, // 0-1
		310, 310, // 2-3
		1000, 1000, // 4-5
		-300, -300, // 6-7
		-1000, -1000, // 8-9
	}
	clusters := [][]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}, {8, 9}}

	res := BalanceClusters(delta, clusters, 2)

	assert.Equal(t, 5, res.SeedsBeforeBalancing)
	assert.Equal(t, 4, res.SeedsAfterBalancing)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, [][]int{{4, 5}, {0, 1, 2, 3}, {6, 7}, {8, 9}}, res.Clusters)
	assert.Equal(t, []ClusterPair{{Positive: 0, Negative: 3}, {Positive: 1, Negative: 2}}, res.Pairs)
}

func TestBalanceClusters_MergesNegativeExcess(t *testing.T) {
	t.Parallel()

	delta := []float64{300, 300, -300, -300, -500, -500}
	clusters := [][]int{{0, 1}, {2, 3}, {4, 5}}

	res := BalanceClusters(delta, clusters, 2)

	assert.Equal(t, 1, res.Iterations)
	assert.Len(t, res.Clusters, 2)
	assert.Equal(t, []ClusterPair{{Positive: 0, Negative: 1}}, res.Pairs)
}

func TestBalanceClusters_ClaimConflict(t *testing.T) {
	t.Parallel()

	delta := []float64{1000, 1000, 300, 300, -310, -310, -2000, -2000}
	clusters := [][]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}}

	res := BalanceClusters(delta, clusters, 2)

	// Both positive clusters prefer the -310 cluster; 300 cancels it best.
	assert.Equal(t, []ClusterPair{{Positive: 1, Negative: 2}}, res.Pairs)
}

func TestBalanceClusters_CountNeverIncreases(t *testing.T) {
	t.Parallel()

	delta := []float64{100, 100, 120, 120, 140, 140, 900, 900, -110, -110, -130, -130}
	clusters := [][]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}, {8, 9}, {10, 11}}

	for limit := 1; limit <= 3; limit++ {
		res := BalanceClusters(delta, clusters, limit)
		assert.GreaterOrEqual(t, res.SeedsBeforeBalancing, res.SeedsAfterBalancing, "instance limit %d", limit)
		for _, p := range res.Pairs {
			assert.Greater(t, res.Stats[p.Positive].Mean, 0.0)
			assert.Less(t, res.Stats[p.Negative].Mean, 0.0)
			assert.Less(t, p.Positive, p.Negative)
		}
	}
}

func TestChooseSeedCluster_TieBreak(t *testing.T) {
	t.Parallel()

	seeds := []rankedCluster{
		{stats: ClusterStats{Count: 3, Mean: 300, Std: 10}},
		{stats: ClusterStats{Count: 3, Mean: 100, Std: 10}},
		{stats: ClusterStats{Count: 3, Mean: -100, Std: 10}},
		{stats: ClusterStats{Count: 3, Mean: -300, Std: 10}},
	}
	dists := make([]distuv.Normal, len(seeds))
	for i, s := range seeds {
		dists[i] = distuv.Normal{Mu: s.stats.Mean, Sigma: s.stats.Std}
	}

	assert.Equal(t, 1, chooseSeedCluster(200, seeds, dists), "positive value prefers the mean below it")
	assert.Equal(t, 2, chooseSeedCluster(-200, seeds, dists), "negative value prefers the mean above it")
	assert.Equal(t, 0, chooseSeedCluster(290, seeds, dists), "highest density wins outright")
}
