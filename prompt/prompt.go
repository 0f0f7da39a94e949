// Package prompt builds the effective system prompts for the
// extraction and classification tasks. Builders are pure functions over
// the task specification; rebuilding after a category change is cheap.
package prompt

import (
	"fmt"
	"strings"
)

// extractionPrompt is the fixed exemplar-driven instruction set for
// single-city extraction. The worked examples are static, not
// data-driven, and prefer the smallest administrative unit named in the
// text.
const extractionPrompt = `你是一个专门从文本中提取城市名称的助手。
请从给定的文本中识别并提取出最主要的一个城市名称，包括对应的行政级别。只返回一个城市名称，不要添加其他解释。
如果文本中出现多个行政级别，优先返回最小的行政单位。

示例：
1. 上海市2024年经济发展报告 -> 上海市
2. 凤阳县乡村振兴发展规划 -> 凤阳县
3. 杭州市西湖景区旅游发展分析 -> 杭州市
4. 天津市滨海新区建设规划 -> 天津市`

// classificationPrompt is the strict fixed-output-only base instruction
// used when the caller supplies no override.
const classificationPrompt = `你是一个专业的文本分类助手。请将给定的文本分类到预定义的类别中。
仔细分析文本内容，选择最合适的类别。
只返回类别名称，不要添加其他解释。

【强制约束】：
- 你的输出必须是类别列表中的确切名称
- 绝对不能输出类别列表之外的任何内容
- 不能创建新的类别或变体
- 不能添加解释、说明或其他文字
- 如果不确定，强制选择最接近的一个类别
- 每次只输出一个类别名称

【分类要求】：
- 仔细理解文本内容和语义
- 选择最匹配的类别
- 如果文本涉及多个类别，选择最主要的一个
- 确保输出的类别名称与给定的类别列表完全一致，一字不差`

// maxExamplesPerCategory caps the worked examples shown per category.
const maxExamplesPerCategory = 3

// Extraction returns the fixed system prompt for the city extraction
// task.
func Extraction() string {
	return extractionPrompt
}

// Classification assembles the system prompt for a classification task:
// the base instruction (custom override when non-empty, else the strict
// default), the enumerated category list with optional per-category
// descriptions, and an optional worked-examples block grouped by
// category with at most three examples each, in input order.
func Classification(base string, categories []string, descriptions map[string]string, examples map[string][]string) string {
	if base == "" {
		base = classificationPrompt
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n可用类别：\n")
	for _, category := range categories {
		b.WriteString("- ")
		b.WriteString(category)
		if desc, ok := descriptions[category]; ok && desc != "" {
			b.WriteString(": ")
			b.WriteString(desc)
		}
		b.WriteString("\n")
	}

	if hasExamples(categories, examples) {
		b.WriteString("\n\n分类示例：\n")
		for _, category := range categories {
			list := examples[category]
			if len(list) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n%s 类别示例：\n", category)
			for i, example := range list {
				if i >= maxExamplesPerCategory {
					break
				}
				fmt.Fprintf(&b, "%d. %s\n", i+1, example)
			}
		}
	}

	return b.String()
}

func hasExamples(categories []string, examples map[string][]string) bool {
	for _, category := range categories {
		if len(examples[category]) > 0 {
			return true
		}
	}
	return false
}
