package domain

// IndexState описывает состояние индекса визуального поиска.
type IndexState int

const (
	IndexUninitialized IndexState = iota
	IndexBuilding
	IndexReady
)

func (s IndexState) String() string {
	switch s {
	case IndexBuilding:
		return "building"
	case IndexReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// DominantColor — один доминирующий цвет изображения с долей пикселей.
// Name заполняется детерминированным неймингом и используется только для диагностики.
type DominantColor struct {
	R, G, B uint8
	Weight  float64
	Name    string
}

// CategoryPrediction — результат zero-shot классификации запроса:
// лучшая метка и полное распределение уверенности по словарю.
type CategoryPrediction struct {
	Label        string
	Confidence   float64
	Distribution map[string]float64
}

// ProductIndexEntry — запись индекса для одного продукта каталога с пригодным изображением.
// Embedding нормализован до единичной L2-нормы; DominantColors отсортированы по убыванию веса
// и дополнены до фиксированной длины. Запись неизменяема после построения индекса.
type ProductIndexEntry struct {
	ProductID      string
	Embedding      []float32
	DominantColors []DominantColor
	Category       string
}

// QueryDescriptor — дескриптор поискового запроса, живёт в рамках одного запроса.
type QueryDescriptor struct {
	Embedding      []float32
	DominantColors []DominantColor
	Category       CategoryPrediction
}

// ComponentScores — разложение итоговой оценки по трём сигналам, каждый в [0,1].
type ComponentScores struct {
	Visual   float64
	Color    float64
	Category float64
}

// ScoredResult — продукт с итоговой оценкой схожести и её разложением.
type ScoredResult struct {
	ProductID     string
	CombinedScore float64
	Components    ComponentScores
}
