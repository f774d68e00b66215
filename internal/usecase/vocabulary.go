package usecase

import (
	"fmt"
	"math"
	"strings"
)

// Закрытый словарь категорий одежды для zero-shot классификации.
// Метки сгруппированы: совпадение группы даёт частичную категорийную схожесть.
var categoryVocabulary = []struct {
	Label string
	Group string
}{
	{"t-shirt", "tops"},
	{"shirt", "tops"},
	{"blouse", "tops"},
	{"sweater", "tops"},
	{"hoodie", "tops"},
	{"tank top", "tops"},
	{"polo shirt", "tops"},
	{"jeans", "bottoms"},
	{"trousers", "bottoms"},
	{"shorts", "bottoms"},
	{"skirt", "bottoms"},
	{"leggings", "bottoms"},
	{"jacket", "outerwear"},
	{"coat", "outerwear"},
	{"blazer", "outerwear"},
	{"vest", "outerwear"},
	{"dress", "dresses"},
	{"gown", "dresses"},
	{"jumpsuit", "dresses"},
	{"sneakers", "footwear"},
	{"boots", "footwear"},
	{"sandals", "footwear"},
	{"heels", "footwear"},
	{"hat", "accessories"},
	{"cap", "accessories"},
	{"scarf", "accessories"},
	{"bag", "accessories"},
	{"belt", "accessories"},
	{"socks", "accessories"},
	{"swimsuit", "other"},
	{"underwear", "other"},
	{"pajamas", "other"},
}

// Шаблоны промптов: оценки по шаблонам усредняются, это сглаживает
// чувствительность zero-shot модели к формулировке.
var promptTemplates = []string{
	"a photo of a %s",
	"a product photo of a %s on a white background",
}

// VocabularyPrompts возвращает промпты одного шаблона для всего словаря.
// Порядок меток стабилен и совпадает с порядком оценок в ответе классификатора.
func VocabularyPrompts(template string) []string {
	prompts := make([]string, 0, len(categoryVocabulary))
	for _, entry := range categoryVocabulary {
		prompts = append(prompts, fmt.Sprintf(template, entry.Label))
	}

	return prompts
}

// CategorySimilarity — дискретная схожесть двух меток категорий:
// точное совпадение, вхождение подстроки, общая группа словаря,
// иначе минимальный ненулевой уровень. Пустая метка даёт 0.
func CategorySimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	switch {
	case a == "" || b == "":
		return 0
	case a == b:
		return 1.0
	case strings.Contains(a, b) || strings.Contains(b, a):
		return 0.7
	case categoryGroup(a) != "" && categoryGroup(a) == categoryGroup(b):
		return 0.5
	default:
		return 0.1
	}
}

// categoryGroup возвращает группу словаря для метки либо пустую строку.
func categoryGroup(label string) string {
	for _, entry := range categoryVocabulary {
		if entry.Label == label {
			return entry.Group
		}
	}

	return ""
}

// softmax переводит сырые оценки в распределение вероятностей.
// Максимум вычитается до экспоненцирования ради численной устойчивости.
func softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}

	return out
}
