package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpaceType(t *testing.T) {
	assert.Equal(t, "cosinesimil", spaceType(MetricCosine))
	assert.Equal(t, "l2", spaceType(MetricL2))
	assert.Equal(t, "innerproduct", spaceType(MetricIP))

	// 未知 metric 退回 cosine
	assert.Equal(t, "cosinesimil", spaceType(Metric("bogus")))
}

func TestTermClauses(t *testing.T) {
	assert.Empty(t, termClauses(nil))

	clauses := termClauses(CompileFilter(map[string]any{
		"category": "tech",
		"priority": 3,
	}))
	require.Len(t, clauses, 2)

	// 过滤字段映射到 metadata 子文档
	assert.Equal(t, map[string]any{
		"term": map[string]any{"metadata.category": "tech"},
	}, clauses[0])
	assert.Equal(t, map[string]any{
		"term": map[string]any{"metadata.priority": 3},
	}, clauses[1])
}

func TestDistanceFromScoreL2(t *testing.T) {
	// score = 1 / (1 + d^2)
	assert.InDelta(t, 0.0, distanceFromScore(MetricL2, 1.0), 1e-9)
	assert.InDelta(t, 1.0, distanceFromScore(MetricL2, 0.5), 1e-9)
	assert.InDelta(t, 2.0, distanceFromScore(MetricL2, 0.2), 1e-9)
	assert.True(t, math.IsInf(distanceFromScore(MetricL2, 0), 1))
}

func TestDistanceFromScoreCosine(t *testing.T) {
	// score = (2 - d) / 2
	assert.InDelta(t, 0.0, distanceFromScore(MetricCosine, 1.0), 1e-9)
	assert.InDelta(t, 1.0, distanceFromScore(MetricCosine, 0.5), 1e-9)
	assert.InDelta(t, 2.0, distanceFromScore(MetricCosine, 0.0), 1e-9)
}

func TestDistanceFromScoreInnerProduct(t *testing.T) {
	// d >= 0: score = d + 1
	assert.InDelta(t, 0.0, distanceFromScore(MetricIP, 1.0), 1e-9)
	assert.InDelta(t, 2.5, distanceFromScore(MetricIP, 3.5), 1e-9)

	// d < 0: score = 1 / (1 - d)
	assert.InDelta(t, -1.0, distanceFromScore(MetricIP, 0.5), 1e-9)
	assert.True(t, math.IsInf(distanceFromScore(MetricIP, 0), -1))
}

func TestDistanceScoreRoundTrip(t *testing.T) {
	// distanceFromScore 与 Score 组合后保持排序方向：
	// 引擎分数越高，相似度分数也越高
	for _, metric := range []Metric{MetricCosine, MetricL2, MetricIP} {
		prev := -1.0
		for _, engineScore := range []float64{0.01, 0.1, 0.3, 0.5, 0.8, 1.0} {
			got := Score(metric, distanceFromScore(metric, engineScore))
			assert.GreaterOrEqual(t, got, prev, "metric=%s engine score=%f", metric, engineScore)
			prev = got
		}
	}
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("cosine")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	m, err = ParseMetric("l2")
	require.NoError(t, err)
	assert.Equal(t, MetricL2, m)

	m, err = ParseMetric("ip")
	require.NoError(t, err)
	assert.Equal(t, MetricIP, m)

	_, err = ParseMetric("hamming")
	require.Error(t, err)
}
