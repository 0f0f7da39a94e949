package classify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SepineTam/city-parse/classify"
	"github.com/SepineTam/city-parse/errors"
	"github.com/SepineTam/city-parse/llm"
	"github.com/SepineTam/city-parse/mocks"
)

// newClassifier wires a classifier to a scripted backend through a
// private registry, so every fresh session shares the backend and its
// call counter.
func newClassifier(t *testing.T, categories []string, backend *mocks.Backend, opts ...classify.Option) *classify.Classifier {
	t.Helper()

	registry := llm.NewRegistry()
	backend.Register(registry, llm.KindOllama)

	opts = append(opts, classify.WithRegistry(registry))
	c, err := classify.New(llm.NewConfig("test-model", llm.KindOllama), categories, opts...)
	require.NoError(t, err)
	return c
}

func TestClassifyExactMatch(t *testing.T) {
	backend := mocks.NewBackend("一线城市")
	c := newClassifier(t, []string{"一线城市", "二线城市", "三线城市", "县城"}, backend)

	result, err := c.Classify(context.Background(), "北京市经济发展")
	require.NoError(t, err)
	assert.Equal(t, "一线城市", result)
	assert.Equal(t, 1, backend.Calls())
}

func TestClassifyFuzzyMatch(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "category_inside_reply", reply: "这应该是一线城市。", want: "一线城市"},
		{name: "reply_inside_category", reply: "一线", want: "一线城市"},
		{name: "case_insensitive", reply: "答案是TIER-ONE没错", want: "tier-one"},
		{name: "first_match_wins", reply: "一线城市或者二线城市", want: "一线城市"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := mocks.NewBackend(tt.reply)
			c := newClassifier(t, []string{"一线城市", "二线城市", "tier-one"}, backend)

			result, err := c.Classify(context.Background(), "文本")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestClassifyMismatch(t *testing.T) {
	backend := mocks.NewBackend("完全无关的回复")
	c := newClassifier(t, []string{"正面", "负面"}, backend)

	_, err := c.Classify(context.Background(), "文本")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.MismatchError))

	// the error names the raw reply and the full category list
	var ce *errors.CityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "完全无关的回复", ce.Details["reply"])
	assert.Equal(t, []string{"正面", "负面"}, ce.Details["categories"])
}

func TestClassifyEmptyInput(t *testing.T) {
	backend := mocks.NewBackend("正面")
	c := newClassifier(t, []string{"正面", "负面"}, backend)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.Classify(context.Background(), text)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ValidationError))
	}

	// validation happens before any backend call
	assert.Equal(t, 0, backend.Calls())
}

func TestClassifyBackendErrorPropagates(t *testing.T) {
	backend := &mocks.Backend{Err: errors.NewBackendError("connection refused", nil)}
	c := newClassifier(t, []string{"正面"}, backend)

	_, err := c.Classify(context.Background(), "文本")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.BackendError))
}

func TestNewEmptyCategories(t *testing.T) {
	tests := []struct {
		name       string
		categories []string
	}{
		{name: "nil", categories: nil},
		{name: "empty", categories: []string{}},
		{name: "all_blank", categories: []string{"", "   ", "\t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classify.New(llm.NewConfig("m", llm.KindOllama), tt.categories)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ConfigError))
		})
	}
}

func TestNewFiltersBlankCategories(t *testing.T) {
	backend := mocks.NewBackend("a")
	c := newClassifier(t, []string{"a", "  ", "b", "", "c"}, backend)

	assert.Equal(t, []string{"a", "b", "c"}, c.Categories())
}

func TestCategoriesReturnsCopy(t *testing.T) {
	backend := mocks.NewBackend("a")
	c := newClassifier(t, []string{"a", "b"}, backend)

	categories := c.Categories()
	categories[0] = "corrupted"
	assert.Equal(t, []string{"a", "b"}, c.Categories())
}

func TestClassifyBatch(t *testing.T) {
	backend := mocks.NewBackend("正面", "负面", "正面")
	c := newClassifier(t, []string{"正面", "负面"}, backend)

	results, err := c.ClassifyBatch(context.Background(), []string{"t1", "t2", "t3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"正面", "负面", "正面"}, results)
	assert.Equal(t, 3, backend.Calls())
}

func TestClassifyBatchEmpty(t *testing.T) {
	backend := mocks.NewBackend("正面")
	c := newClassifier(t, []string{"正面"}, backend)

	results, err := c.ClassifyBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, backend.Calls())
}

func TestClassifyBatchFirstFailureAborts(t *testing.T) {
	backend := mocks.NewBackend("正面", "无关回复", "正面")
	c := newClassifier(t, []string{"正面", "负面"}, backend)

	_, err := c.ClassifyBatch(context.Background(), []string{"t1", "t2", "t3"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.MismatchError))

	// the third text is never attempted
	assert.Equal(t, 2, backend.Calls())
}

func TestClassifyWithConfidence(t *testing.T) {
	backend := mocks.NewBackend("正面", "正面", "负面")
	c := newClassifier(t, []string{"正面", "负面"}, backend)

	result, err := c.ClassifyWithConfidence(context.Background(), "服务不错")
	require.NoError(t, err)

	assert.Equal(t, "正面", result.Category)
	assert.InDelta(t, 2.0/3.0, result.Confidence, 1e-9)
	assert.Equal(t, []string{"正面", "正面", "负面"}, result.AllPredictions)
	assert.Equal(t, 3, backend.Calls())
}

func TestClassifyWithConfidenceDropsMismatches(t *testing.T) {
	backend := mocks.NewBackend("无关", "负面", "无关")
	c := newClassifier(t, []string{"正面", "负面"}, backend)

	result, err := c.ClassifyWithConfidence(context.Background(), "文本")
	require.NoError(t, err)

	assert.Equal(t, "负面", result.Category)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, []string{"负面"}, result.AllPredictions)
}

func TestClassifyWithConfidenceAllMismatch(t *testing.T) {
	backend := mocks.NewBackend("无关1", "无关2", "无关3")
	c := newClassifier(t, []string{"正面", "负面"}, backend)

	_, err := c.ClassifyWithConfidence(context.Background(), "文本")
	require.Error(t, err)

	// aggregate failure, not a mismatch
	assert.False(t, errors.IsType(err, errors.MismatchError))
	assert.True(t, errors.IsType(err, errors.InternalError))
}

func TestClassifyWithConfidenceBackendErrorAborts(t *testing.T) {
	backend := &mocks.Backend{Err: errors.NewBackendError("boom", nil)}
	c := newClassifier(t, []string{"正面"}, backend)

	_, err := c.ClassifyWithConfidence(context.Background(), "文本")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.BackendError))
	assert.Equal(t, 1, backend.Calls())
}

func TestAddCategory(t *testing.T) {
	backend := mocks.NewBackend("a")
	c := newClassifier(t, []string{"a", "b"}, backend)

	c.AddCategory("x", "新加入的类别")
	assert.Equal(t, []string{"a", "b", "x"}, c.Categories())
	assert.Contains(t, c.SystemPrompt(), "- x: 新加入的类别")
}

func TestAddCategoryNoOps(t *testing.T) {
	backend := mocks.NewBackend("a")
	c := newClassifier(t, []string{"a", "b"}, backend)

	c.AddCategory("a", "")
	c.AddCategory("", "")
	c.AddCategory("   ", "desc")
	assert.Equal(t, []string{"a", "b"}, c.Categories())
}

func TestAddCategoryOnlyAffectsNewSessions(t *testing.T) {
	backend := mocks.NewBackend("a")
	c := newClassifier(t, []string{"a", "b"}, backend)

	before, err := c.NewSession()
	require.NoError(t, err)

	c.AddCategory("x", "")

	after, err := c.NewSession()
	require.NoError(t, err)

	// sessions keep the prompt captured at construction time
	assert.NotContains(t, before.Config().SystemPrompt, "- x")
	assert.Contains(t, after.Config().SystemPrompt, "- x")
}

func TestCustomBasePromptAppearsInSystemMessage(t *testing.T) {
	backend := mocks.NewBackend("正面")
	custom := "自定义分类提示词"

	registry := llm.NewRegistry()
	backend.Register(registry, llm.KindOllama)

	cfg := llm.NewConfig("test-model", llm.KindOllama)
	cfg.SystemPrompt = custom

	c, err := classify.New(cfg, []string{"正面", "负面"}, classify.WithRegistry(registry))
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "文本")
	require.NoError(t, err)

	messages := backend.LastMessages()
	require.NotEmpty(t, messages)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, custom)
	assert.Contains(t, messages[0].Content, "可用类别：")
}

func TestClassifySessionsAreIndependent(t *testing.T) {
	backend := mocks.NewBackend("正面")
	c := newClassifier(t, []string{"正面"}, backend)

	_, err := c.Classify(context.Background(), "第一次")
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), "第二次")
	require.NoError(t, err)

	// the second call carries no history from the first
	messages := backend.LastMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "第二次", messages[1].Content)
}
