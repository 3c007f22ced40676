package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFilterEmpty(t *testing.T) {
	assert.Nil(t, CompileFilter(nil))
	assert.Nil(t, CompileFilter(map[string]any{}))
}

func TestCompileFilterSingle(t *testing.T) {
	f := CompileFilter(map[string]any{"category": "tech"})
	require.NotNil(t, f)
	require.Len(t, f.Conditions, 1)
	assert.Equal(t, "category", f.Conditions[0].Field)
	assert.Equal(t, "tech", f.Conditions[0].Value)
}

func TestCompileFilterDeterministicOrder(t *testing.T) {
	f := CompileFilter(map[string]any{
		"zone":     "cn",
		"category": "tech",
		"priority": 1,
	})
	require.NotNil(t, f)
	require.Len(t, f.Conditions, 3)

	// 条件按字段名排序
	assert.Equal(t, "category", f.Conditions[0].Field)
	assert.Equal(t, "priority", f.Conditions[1].Field)
	assert.Equal(t, "zone", f.Conditions[2].Field)
}

func TestFilterMatch(t *testing.T) {
	doc := map[string]any{
		FieldContent: "hello",
		FieldMetadata: map[string]any{
			"category": "tech",
			"priority": 1,
		},
	}

	// nil 过滤器匹配一切
	var nilFilter *Filter
	assert.True(t, nilFilter.Match(doc))

	assert.True(t, CompileFilter(map[string]any{"category": "tech"}).Match(doc))
	assert.False(t, CompileFilter(map[string]any{"category": "news"}).Match(doc))

	// 所有条件必须同时成立
	assert.True(t, CompileFilter(map[string]any{"category": "tech", "priority": 1}).Match(doc))
	assert.False(t, CompileFilter(map[string]any{"category": "tech", "priority": 2}).Match(doc))

	// 缺失字段不匹配
	assert.False(t, CompileFilter(map[string]any{"missing": "x"}).Match(doc))
}

func TestFilterMatchNumericTypes(t *testing.T) {
	// JSON 反序列化会把数字变成 float64
	doc := map[string]any{
		FieldMetadata: map[string]any{"priority": float64(1)},
	}

	assert.True(t, CompileFilter(map[string]any{"priority": 1}).Match(doc))
	assert.True(t, CompileFilter(map[string]any{"priority": int64(1)}).Match(doc))
	assert.False(t, CompileFilter(map[string]any{"priority": 2}).Match(doc))

	// 字符串和数字不互相匹配
	assert.False(t, CompileFilter(map[string]any{"priority": "1"}).Match(doc))
}

func TestFilterMatchNoMetadata(t *testing.T) {
	doc := map[string]any{FieldContent: "bare"}

	assert.True(t, (*Filter)(nil).Match(doc))
	assert.False(t, CompileFilter(map[string]any{"any": "thing"}).Match(doc))
}
