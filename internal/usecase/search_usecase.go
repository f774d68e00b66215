package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/smartwear-tech/go-backend/internal/cfg"
	"github.com/smartwear-tech/go-backend/internal/domain"
	"github.com/smartwear-tech/go-backend/internal/imaging"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/logger"
)

// SearchUseCase — движок визуального поиска по каталогу.
// Индекс живёт в памяти процесса и строится лениво при первом обращении;
// конкурентные инициализации схлопываются в одно построение.
type SearchUseCase struct {
	productRepo ProductRepository
	productInfo ProductUC
	mlService   MlServiceInfra
	images      ImagesInfra
	fetcher     ImageFetcher
	cfg         *cfg.SearchCfg
	logger      logger.Logger

	mu        sync.Mutex
	state     domain.IndexState
	entries   []domain.ProductIndexEntry
	buildDone chan struct{}
	buildErr  error
}

func NewSearchUseCase(
	productRepo ProductRepository,
	productInfo ProductUC,
	mlService MlServiceInfra,
	images ImagesInfra,
	fetcher ImageFetcher,
	searchCfg *cfg.SearchCfg,
	logger logger.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		productRepo: productRepo,
		productInfo: productInfo,
		mlService:   mlService,
		images:      images,
		fetcher:     fetcher,
		cfg:         searchCfg,
		logger:      logger,
	}
}

// Initialize строит индекс, если он ещё не построен. Повторный вызов на готовом
// индексе — no-op; вызов во время построения ждёт его завершения и возвращает
// его результат. Неудачное построение откатывает индекс в исходное состояние,
// следующий вызов попробует построить заново.
func (s *SearchUseCase) Initialize(ctx context.Context) error {
	const op = "SearchUseCase.Initialize"

	s.mu.Lock()
	switch s.state {
	case domain.IndexReady:
		s.mu.Unlock()
		return nil
	case domain.IndexBuilding:
		done := s.buildDone
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return e.Wrap(op, ctx.Err())
		}

		s.mu.Lock()
		err := s.buildErr
		s.mu.Unlock()
		return err
	}

	s.state = domain.IndexBuilding
	s.buildDone = make(chan struct{})
	s.buildErr = nil
	done := s.buildDone
	s.mu.Unlock()

	entries, total, err := s.buildIndex(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = domain.IndexUninitialized
		s.entries = nil
		s.buildErr = e.Wrap(op, err)
		s.logger.Errorf(err, "visual index build failed")
	} else {
		s.state = domain.IndexReady
		s.entries = entries
		s.logger.Infof("visual index ready: %d of %d catalog products indexed", len(entries), total)
	}
	close(done)

	return s.buildErr
}

// Invalidate сбрасывает индекс после изменения каталога. Если построение
// идёт прямо сейчас, сброс дожидается его окончания, чтобы не потерять
// результат гонки между построением и сбросом.
func (s *SearchUseCase) Invalidate(ctx context.Context) error {
	const op = "SearchUseCase.Invalidate"

	for {
		s.mu.Lock()
		if s.state != domain.IndexBuilding {
			s.state = domain.IndexUninitialized
			s.entries = nil
			s.mu.Unlock()
			return nil
		}

		done := s.buildDone
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return e.Wrap(op, ctx.Err())
		}
	}
}

// Search выполняет визуальный поиск: получает изображение запроса, строит
// его дескриптор и ранжирует продукты каталога смесью трёх сигналов.
// В отличие от построения индекса, любой сбой обработки запроса фатален
// для этого запроса.
func (s *SearchUseCase) Search(ctx context.Context, req *SearchReq) (*SearchRes, error) {
	const op = "SearchUseCase.Search"

	topK, weights, err := s.resolveParams(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	entries, ok := s.snapshot()
	if !ok {
		return nil, e.Wrap(op, e.ErrInternalServerError)
	}
	if len(entries) == 0 {
		return &SearchRes{Results: []SearchResult{}}, nil
	}

	query, err := s.describeQuery(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	scored := rankEntries(query, entries, weights, topK)

	results, err := s.materialize(ctx, scored)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &SearchRes{
		QueryCategory: query.Category,
		Results:       results,
	}, nil
}

func (s *SearchUseCase) resolveParams(req *SearchReq) (int, FusionWeights, error) {
	if len(req.ImageData) == 0 && req.ImageURL == "" {
		return 0, FusionWeights{}, e.ErrQueryImageRequired
	}

	topK := req.TopK
	switch {
	case topK == 0:
		topK = s.cfg.TopK
	case topK < 0:
		return 0, FusionWeights{}, e.ErrInvalidTopK
	}

	weights := FusionWeights{
		Visual:   s.cfg.VisualWeight,
		Color:    s.cfg.ColorWeight,
		Category: s.cfg.CategoryWeight,
	}
	if req.Weights != nil {
		weights = *req.Weights
	}
	if weights.Visual < 0 || weights.Color < 0 || weights.Category < 0 {
		return 0, FusionWeights{}, e.ErrNegativeWeight
	}
	if weights.Visual+weights.Color+weights.Category == 0 {
		return 0, FusionWeights{}, e.ErrNegativeWeight
	}

	return topK, weights, nil
}

// snapshot возвращает записи готового индекса. Записи неизменяемы,
// поэтому срез отдается без копирования.
func (s *SearchUseCase) snapshot() ([]domain.ProductIndexEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.IndexReady {
		return nil, false
	}

	return s.entries, true
}

// describeQuery строит дескриптор изображения запроса: скачивание (при URL),
// декодирование, подавление фона, цветовой профиль, zero-shot категория и
// нормированный эмбеддинг.
func (s *SearchUseCase) describeQuery(ctx context.Context, req *SearchReq) (*domain.QueryDescriptor, error) {
	data := req.ImageData
	if len(data) == 0 {
		fetched, err := s.fetcher.FetchBytes(ctx, req.ImageURL)
		if err != nil {
			return nil, err
		}
		data = fetched
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	segmented, err := imaging.Segment(img, s.logger)
	if err != nil {
		return nil, err
	}

	colors, err := imaging.DominantColors(segmented)
	if err != nil {
		return nil, err
	}

	category, err := s.classify(ctx, data)
	if err != nil {
		return nil, err
	}

	embedding, err := s.vectorize(ctx, data)
	if err != nil {
		return nil, err
	}

	return &domain.QueryDescriptor{
		Embedding:      embedding,
		DominantColors: colors,
		Category:       category,
	}, nil
}

// classify прогоняет изображение через zero-shot классификатор по каждому
// шаблону промптов, усредняет сырые оценки и превращает их в распределение.
func (s *SearchUseCase) classify(ctx context.Context, image []byte) (domain.CategoryPrediction, error) {
	avg := make([]float64, len(categoryVocabulary))

	for _, template := range promptTemplates {
		scores, err := s.mlService.ClassifyScores(ctx, NewClassifyReq(image, VocabularyPrompts(template)))
		if err != nil {
			return domain.CategoryPrediction{}, err
		}
		if len(scores) != len(categoryVocabulary) {
			return domain.CategoryPrediction{}, e.Wrap("classifier score count mismatch", e.ErrMLServiceUnavailable)
		}

		for i, score := range scores {
			avg[i] += score / float64(len(promptTemplates))
		}
	}

	probs := softmax(avg)

	distribution := make(map[string]float64, len(categoryVocabulary))
	best := 0
	for i, entry := range categoryVocabulary {
		distribution[entry.Label] = probs[i]
		if probs[i] > probs[best] {
			best = i
		}
	}

	return domain.CategoryPrediction{
		Label:        categoryVocabulary[best].Label,
		Confidence:   probs[best],
		Distribution: distribution,
	}, nil
}

// vectorize получает эмбеддинг изображения от энкодера, проверяет размерность
// и нормирует его.
func (s *SearchUseCase) vectorize(ctx context.Context, image []byte) ([]float32, error) {
	res, err := s.mlService.Vectorize(ctx, NewVectorizeReq(image))
	if err != nil {
		return nil, err
	}
	if s.cfg.VectorSize > 0 && len(res.Vector) != s.cfg.VectorSize {
		return nil, e.ErrVectorSizeMismatch
	}
	if err := NormalizeVector(res.Vector); err != nil {
		return nil, err
	}

	return res.Vector, nil
}

// buildIndex строит записи индекса для всего каталога ограниченным пулом
// воркеров. Продукт с недоступным или нечитаемым изображением пропускается
// с логированием; недоступность ML-сервиса фатальна для всего построения.
// Результаты собираются позиционно, порядок каталога сохраняется.
func (s *SearchUseCase) buildIndex(ctx context.Context) ([]domain.ProductIndexEntry, int, error) {
	products, err := s.productRepo.ListCatalog(ctx)
	if err != nil {
		return nil, 0, err
	}
	if len(products) == 0 {
		return []domain.ProductIndexEntry{}, 0, nil
	}

	buildCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	concurrency := s.cfg.BuildConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		wg    sync.WaitGroup
		sem   = make(chan struct{}, concurrency)
		slots = make([]*domain.ProductIndexEntry, len(products))

		fatalMu sync.Mutex
		fatal   error
	)

	for i, product := range products {
		wg.Add(1)
		go func(i int, product CatalogProduct) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if buildCtx.Err() != nil {
				return
			}

			entry, err := s.buildEntry(buildCtx, product)
			if err != nil {
				if isFatalBuildErr(err) {
					fatalMu.Lock()
					if fatal == nil {
						fatal = err
						cancel()
					}
					fatalMu.Unlock()
					return
				}

				s.logger.Warnf("index build: skipping product %s: %v", product.ID, err)
				return
			}

			slots[i] = entry
		}(i, product)
	}
	wg.Wait()

	if fatal != nil {
		return nil, len(products), fatal
	}
	// Отмена внешнего контекста могла остановить воркеры до начала работы.
	// Такое построение неполно и не должно стать готовым индексом.
	if err := ctx.Err(); err != nil {
		return nil, len(products), err
	}

	entries := make([]domain.ProductIndexEntry, 0, len(slots))
	for _, entry := range slots {
		if entry != nil {
			entries = append(entries, *entry)
		}
	}

	return entries, len(products), nil
}

// buildEntry строит запись индекса одного продукта: изображение берётся из S3
// по ключу либо скачивается по URL, категория — из каталога, а при её отсутствии
// определяется классификатором.
func (s *SearchUseCase) buildEntry(ctx context.Context, product CatalogProduct) (*domain.ProductIndexEntry, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case product.ImageKey != "":
		data, err = s.images.GetImage(ctx, product.ImageKey)
	case product.ImageURL != "":
		data, err = s.fetcher.FetchBytes(ctx, product.ImageURL)
	default:
		err = e.Wrap("product has no image", e.ErrImageUnavailable)
	}
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	segmented, err := imaging.Segment(img, s.logger)
	if err != nil {
		return nil, err
	}

	colors, err := imaging.DominantColors(segmented)
	if err != nil {
		return nil, err
	}

	category := product.CategoryName
	if category == "" {
		prediction, err := s.classify(ctx, data)
		if err != nil {
			return nil, err
		}
		category = prediction.Label
	}

	embedding, err := s.vectorize(ctx, data)
	if err != nil {
		return nil, err
	}

	return &domain.ProductIndexEntry{
		ProductID:      product.ID,
		Embedding:      embedding,
		DominantColors: colors,
		Category:       category,
	}, nil
}

// isFatalBuildErr отделяет сбои, обрывающие построение индекса, от пропуска
// одного продукта. Недоступность ML-сервиса и несоответствие размерности
// говорят о неработоспособности движка в целом.
func isFatalBuildErr(err error) bool {
	return errors.Is(err, e.ErrMLServiceUnavailable) ||
		errors.Is(err, e.ErrVectorSizeMismatch) ||
		errors.Is(err, context.Canceled)
}

// materialize превращает ранжированные идентификаторы в карточки продуктов.
// Продукт, исчезнувший из каталога после построения индекса, выпадает из
// выдачи с предупреждением.
func (s *SearchUseCase) materialize(ctx context.Context, scored []domain.ScoredResult) ([]SearchResult, error) {
	if len(scored) == 0 {
		return []SearchResult{}, nil
	}

	ids := make([]int64, 0, len(scored))
	for _, sc := range scored {
		id, err := strconv.ParseInt(sc.ProductID, 10, 64)
		if err != nil {
			return nil, e.Wrap("malformed product id "+sc.ProductID, e.ErrInternalServerError)
		}
		ids = append(ids, id)
	}

	res, err := s.productInfo.GetProductsInfo(ctx, &GetProductsReq{IDs: ids})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]ProductInfo, len(res.Products))
	for _, info := range res.Products {
		byID[info.ID] = info
	}

	results := make([]SearchResult, 0, len(scored))
	for i, sc := range scored {
		info, ok := byID[ids[i]]
		if !ok {
			s.logger.Warnf("search: product %s vanished from catalog, dropping from results", sc.ProductID)
			continue
		}
		results = append(results, NewSearchResult(info, sc))
	}

	return results, nil
}
