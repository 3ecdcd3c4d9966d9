package cache

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func geneBounds(g *Gene) (int64, int64) { return g.Start, g.End }

func geneIDs(genes []*Gene) []string {
	return lo.Map(genes, func(g *Gene, _ int) string { return g.ID })
}

func TestBuildIntervalTree_Empty(t *testing.T) {
	tree := BuildIntervalTree(nil, geneBounds)
	assert.Empty(t, tree.FindOverlaps(100))
	assert.Equal(t, 0, tree.Len())
}

func TestIntervalTree_SingleGene(t *testing.T) {
	tree := BuildIntervalTree([]*Gene{{ID: "G1", Start: 100, End: 200}}, geneBounds)

	assert.Equal(t, []string{"G1"}, geneIDs(tree.FindOverlaps(150)))
	assert.Len(t, tree.FindOverlaps(100), 1, "start boundary inclusive")
	assert.Len(t, tree.FindOverlaps(200), 1, "end boundary inclusive")
	assert.Empty(t, tree.FindOverlaps(99), "before start")
	assert.Empty(t, tree.FindOverlaps(201), "after end")
}

func TestIntervalTree_Overlapping(t *testing.T) {
	tree := BuildIntervalTree([]*Gene{
		{ID: "C", Start: 200, End: 400},
		{ID: "A", Start: 100, End: 300},
		{ID: "B", Start: 150, End: 250},
	}, geneBounds)

	assert.Equal(t, []string{"A", "B"}, geneIDs(tree.FindOverlaps(175)))
	assert.Equal(t, []string{"A", "B", "C"}, geneIDs(tree.FindOverlaps(250)), "ordered by start")
	assert.Equal(t, []string{"C"}, geneIDs(tree.FindOverlaps(350)))
}

func TestIntervalTree_FindRange(t *testing.T) {
	tree := BuildIntervalTree([]*Gene{
		{ID: "A", Start: 100, End: 200},
		{ID: "B", Start: 300, End: 400},
		{ID: "C", Start: 500, End: 600},
	}, geneBounds)

	assert.Empty(t, tree.FindRange(210, 290), "gap between A and B")
	assert.Equal(t, []string{"A", "B"}, geneIDs(tree.FindRange(150, 300)))
	assert.Equal(t, []string{"A", "B", "C"}, geneIDs(tree.FindRange(0, 10000)))
}

func TestIntervalTree_MaxEndPruning(t *testing.T) {
	tree := BuildIntervalTree([]*Gene{
		{ID: "short", Start: 100, End: 110},
		{ID: "long", Start: 105, End: 500},
	}, geneBounds)

	assert.Equal(t, []string{"long"}, geneIDs(tree.FindOverlaps(400)))
}

func TestIntervalTree_MatchesLinearScan(t *testing.T) {
	genes := []*Gene{
		{ID: "A", Start: 1000, End: 5000},
		{ID: "B", Start: 2000, End: 3000},
		{ID: "C", Start: 4000, End: 8000},
		{ID: "D", Start: 6000, End: 7000},
		{ID: "E", Start: 9000, End: 10000},
	}
	tree := BuildIntervalTree(genes, geneBounds)

	for start := int64(0); start <= 11000; start += 500 {
		end := start + 700
		linear := lo.Filter(genes, func(g *Gene, _ int) bool { return g.Overlaps(start, end) })
		assert.ElementsMatch(t, geneIDs(linear), geneIDs(tree.FindRange(start, end)), "range %d-%d", start, end)
	}
}

func TestIntervalTree_RegulatoryFeatures(t *testing.T) {
	feats := []*RegulatoryFeature{{ID: "R1", Start: 10, End: 20}, {ID: "R2", Start: 15, End: 30}}
	tree := BuildIntervalTree(feats, func(f *RegulatoryFeature) (int64, int64) { return f.Start, f.End })

	got := tree.FindRange(25, 40)
	assert.Len(t, got, 1)
	assert.Equal(t, "R2", got[0].ID)
}
