// Package models содержит доменные структуры движка учёта использования:
// квоты, события использования, агрегированные снимки статистики,
// состояние гостевого пробного режима и отчёты фоновых задач.
package models

import "fmt"

// ToolKind вид инструмента, потребление которого ограничивается квотой.
type ToolKind string

const (
	ToolGenerate  ToolKind = "generate"
	ToolImprove   ToolKind = "improve"
	ToolSummarize ToolKind = "summarize"
	ToolQuiz      ToolKind = "quiz"
)

// ToolKinds фиксированный набор категорий событий использования.
var ToolKinds = []ToolKind{ToolGenerate, ToolImprove, ToolSummarize, ToolQuiz}

// Valid сообщает, входит ли вид инструмента в фиксированный набор.
func (t ToolKind) Valid() bool {
	for _, k := range ToolKinds {
		if k == t {
			return true
		}
	}
	return false
}

// ParseToolKind преобразует строку из запроса в ToolKind.
func ParseToolKind(s string) (ToolKind, error) {
	t := ToolKind(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
	}
	return t, nil
}
