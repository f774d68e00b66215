package usecase

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartwear-tech/go-backend/internal/cfg"
	"github.com/smartwear-tech/go-backend/internal/domain"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type stubCatalog struct {
	products []CatalogProduct
	calls    int32
	err      error
}

func (s *stubCatalog) ListCatalog(ctx context.Context) ([]CatalogProduct, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.products, s.err
}

func (s *stubCatalog) Upsert(ctx context.Context, product *domain.Product) (*UpsertProductRes, error) {
	return nil, nil
}

func (s *stubCatalog) GetProductsInfo(ctx context.Context, ids []int64) ([]ProductInfo, error) {
	return nil, nil
}

type stubProductUC struct {
	infos map[int64]ProductInfo
}

func (s *stubProductUC) RegisterNewProduct(ctx context.Context, req *AddNewProductReq) error {
	return nil
}

func (s *stubProductUC) GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error) {
	res := &GetProductsRes{}
	for _, id := range req.IDs {
		if info, ok := s.infos[id]; ok {
			res.Products = append(res.Products, info)
		} else {
			res.NotFoundProducts = append(res.NotFoundProducts, id)
		}
	}
	return res, nil
}

// stubML сопоставляет байтам изображения фиксированный вектор.
type stubML struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    bool
	topIdx  int
}

func (s *stubML) Vectorize(ctx context.Context, req *VectorizeReq) (*VectorizeRes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return nil, e.Wrap("stub", e.ErrMLServiceUnavailable)
	}

	vec, ok := s.vectors[string(req.Image)]
	if !ok {
		return nil, e.Wrap("unknown image", e.ErrMLServiceUnavailable)
	}

	// Копия: вызывающая сторона нормирует вектор на месте
	out := make([]float32, len(vec))
	copy(out, vec)
	return NewVectorizeRes(out, "test-v1"), nil
}

func (s *stubML) ClassifyScores(ctx context.Context, req *ClassifyReq) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return nil, e.Wrap("stub", e.ErrMLServiceUnavailable)
	}

	scores := make([]float64, len(req.Prompts))
	scores[s.topIdx] = 10
	return scores, nil
}

type stubFetcher struct {
	images map[string][]byte
}

func (s *stubFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	data, ok := s.images[url]
	if !ok {
		return nil, e.Wrap(url, e.ErrImageUnavailable)
	}
	return data, nil
}

type stubImages struct {
	objects map[string][]byte
}

func (s *stubImages) UploadImage(ctx context.Context, req *UploadImageReq) (string, error) {
	return "", nil
}

func (s *stubImages) GetImage(ctx context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, e.Wrap(key, e.ErrImageUnavailable)
	}
	return data, nil
}

func (s *stubImages) CleanupImages(keys []string) {}

func testSearchCfg() *cfg.SearchCfg {
	return &cfg.SearchCfg{
		VectorSize:       3,
		TopK:             5,
		VisualWeight:     0.3,
		ColorWeight:      0.4,
		CategoryWeight:   0.3,
		FetchTimeout:     time.Second,
		BuildConcurrency: 4,
	}
}

func newTestEngine(catalog *stubCatalog, ml *stubML, fetcher *stubFetcher, images *stubImages, infos map[int64]ProductInfo) *SearchUseCase {
	return NewSearchUseCase(
		catalog,
		&stubProductUC{infos: infos},
		ml,
		images,
		fetcher,
		testSearchCfg(),
		logger.NewSlogLogger(),
	)
}

func TestInitializeEmptyCatalog(t *testing.T) {
	engine := newTestEngine(&stubCatalog{}, &stubML{}, &stubFetcher{}, &stubImages{}, nil)

	require.NoError(t, engine.Initialize(context.Background()))

	entries, ok := engine.snapshot()
	require.True(t, ok)
	assert.Empty(t, entries)

	// Поиск по пустому каталогу не трогает ML-сервис
	res, err := engine.Search(context.Background(), &SearchReq{ImageData: []byte{1}})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestInitializeSingleFlight(t *testing.T) {
	redPNG := testPNG(t, color.RGBA{R: 220, G: 30, B: 30, A: 255})
	catalog := &stubCatalog{products: []CatalogProduct{
		{ID: "1", Name: "red dress", CategoryName: "dress", ImageURL: "http://img/red"},
	}}
	ml := &stubML{vectors: map[string][]float32{string(redPNG): {1, 0, 0}}}
	fetcher := &stubFetcher{images: map[string][]byte{"http://img/red": redPNG}}

	engine := newTestEngine(catalog, ml, fetcher, &stubImages{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, engine.Initialize(context.Background()))
		}()
	}
	wg.Wait()

	// Конкурентные инициализации схлопнулись в одно построение
	assert.Equal(t, int32(1), atomic.LoadInt32(&catalog.calls))

	entries, ok := engine.snapshot()
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, "1", entries[0].ProductID)
	assert.Equal(t, "dress", entries[0].Category)
}

func TestInitializeFailureResetsState(t *testing.T) {
	redPNG := testPNG(t, color.RGBA{R: 220, G: 30, B: 30, A: 255})
	catalog := &stubCatalog{products: []CatalogProduct{
		{ID: "1", Name: "red dress", CategoryName: "dress", ImageURL: "http://img/red"},
	}}
	ml := &stubML{fail: true, vectors: map[string][]float32{string(redPNG): {1, 0, 0}}}
	fetcher := &stubFetcher{images: map[string][]byte{"http://img/red": redPNG}}

	engine := newTestEngine(catalog, ml, fetcher, &stubImages{}, nil)

	err := engine.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, e.ErrMLServiceUnavailable)

	_, ok := engine.snapshot()
	assert.False(t, ok)

	// После восстановления ML-сервиса построение повторяется
	ml.mu.Lock()
	ml.fail = false
	ml.mu.Unlock()

	require.NoError(t, engine.Initialize(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&catalog.calls))
}

func TestBuildSkipsBrokenImages(t *testing.T) {
	redPNG := testPNG(t, color.RGBA{R: 220, G: 30, B: 30, A: 255})
	bluePNG := testPNG(t, color.RGBA{R: 30, G: 30, B: 220, A: 255})

	catalog := &stubCatalog{products: []CatalogProduct{
		{ID: "1", Name: "red dress", CategoryName: "dress", ImageURL: "http://img/red"},
		{ID: "2", Name: "broken", CategoryName: "boots", ImageURL: "http://img/missing"},
		{ID: "3", Name: "blue jeans", CategoryName: "jeans", ImageKey: "jeans-key"},
	}}
	ml := &stubML{vectors: map[string][]float32{
		string(redPNG):  {1, 0, 0},
		string(bluePNG): {0, 1, 0},
	}}
	fetcher := &stubFetcher{images: map[string][]byte{"http://img/red": redPNG}}
	images := &stubImages{objects: map[string][]byte{"jeans-key": bluePNG}}

	engine := newTestEngine(catalog, ml, fetcher, images, nil)

	require.NoError(t, engine.Initialize(context.Background()))

	entries, ok := engine.snapshot()
	require.True(t, ok)
	require.Len(t, entries, 2)

	// Порядок каталога сохранён, сломанный продукт пропущен
	assert.Equal(t, "1", entries[0].ProductID)
	assert.Equal(t, "3", entries[1].ProductID)
}

func TestSearchRanksExactMatchFirst(t *testing.T) {
	redPNG := testPNG(t, color.RGBA{R: 220, G: 30, B: 30, A: 255})
	bluePNG := testPNG(t, color.RGBA{R: 30, G: 30, B: 220, A: 255})

	catalog := &stubCatalog{products: []CatalogProduct{
		{ID: "1", Name: "blue jeans", CategoryName: "jeans", ImageURL: "http://img/blue"},
		{ID: "2", Name: "red dress", CategoryName: "dress", ImageURL: "http://img/red"},
	}}
	dressIdx := 0
	for i, entry := range categoryVocabulary {
		if entry.Label == "dress" {
			dressIdx = i
		}
	}
	ml := &stubML{
		vectors: map[string][]float32{
			string(redPNG):  {1, 0, 0},
			string(bluePNG): {0, 1, 0},
		},
		topIdx: dressIdx,
	}
	fetcher := &stubFetcher{images: map[string][]byte{
		"http://img/red":  redPNG,
		"http://img/blue": bluePNG,
	}}
	infos := map[int64]ProductInfo{
		1: {ID: 1, Name: "blue jeans", CategoryName: "jeans", Price: 100},
		2: {ID: 2, Name: "red dress", CategoryName: "dress", Price: 200},
	}

	engine := newTestEngine(catalog, ml, fetcher, &stubImages{}, infos)

	res, err := engine.Search(context.Background(), &SearchReq{ImageData: redPNG})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)

	assert.Equal(t, "dress", res.QueryCategory.Label)
	assert.Equal(t, int64(2), res.Results[0].Product.ID)
	assert.Greater(t, res.Results[0].CombinedScore, res.Results[1].CombinedScore)
	assert.InDelta(t, 1.0, res.Results[0].Components.Visual, 1e-6)
}

func TestSearchValidation(t *testing.T) {
	engine := newTestEngine(&stubCatalog{}, &stubML{}, &stubFetcher{}, &stubImages{}, nil)

	_, err := engine.Search(context.Background(), &SearchReq{})
	assert.ErrorIs(t, err, e.ErrQueryImageRequired)

	_, err = engine.Search(context.Background(), &SearchReq{ImageData: []byte{1}, TopK: -1})
	assert.ErrorIs(t, err, e.ErrInvalidTopK)

	_, err = engine.Search(context.Background(), &SearchReq{
		ImageData: []byte{1},
		Weights:   &FusionWeights{Visual: -1},
	})
	assert.ErrorIs(t, err, e.ErrNegativeWeight)

	_, err = engine.Search(context.Background(), &SearchReq{
		ImageData: []byte{1},
		Weights:   &FusionWeights{},
	})
	assert.ErrorIs(t, err, e.ErrNegativeWeight)
}

func TestInvalidateForcesRebuild(t *testing.T) {
	redPNG := testPNG(t, color.RGBA{R: 220, G: 30, B: 30, A: 255})
	catalog := &stubCatalog{products: []CatalogProduct{
		{ID: "1", Name: "red dress", CategoryName: "dress", ImageURL: "http://img/red"},
	}}
	ml := &stubML{vectors: map[string][]float32{string(redPNG): {1, 0, 0}}}
	fetcher := &stubFetcher{images: map[string][]byte{"http://img/red": redPNG}}

	engine := newTestEngine(catalog, ml, fetcher, &stubImages{}, nil)

	require.NoError(t, engine.Initialize(context.Background()))
	require.NoError(t, engine.Invalidate(context.Background()))

	_, ok := engine.snapshot()
	assert.False(t, ok)

	require.NoError(t, engine.Initialize(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&catalog.calls))
}

func TestProductValidation(t *testing.T) {
	uc := &ProductUseCase{}

	assert.ErrorIs(t, uc.validateProduct(&AddNewProductReq{Price: 100, Image: ProductImage{Data: []byte{1}}}), e.ErrProductNameRequired)
	assert.ErrorIs(t, uc.validateProduct(&AddNewProductReq{Name: "x", Image: ProductImage{Data: []byte{1}}}), e.ErrPriceMustBePositive)
	assert.ErrorIs(t, uc.validateProduct(&AddNewProductReq{Name: "x", Price: 100}), e.ErrNoImages)
	assert.NoError(t, uc.validateProduct(&AddNewProductReq{Name: "x", Price: 100, Image: ProductImage{Data: []byte{1}}}))
}

func TestInitializeCanceledContext(t *testing.T) {
	redPNG := testPNG(t, color.RGBA{R: 220, G: 30, B: 30, A: 255})
	catalog := &stubCatalog{products: []CatalogProduct{
		{ID: "1", Name: "red dress", CategoryName: "dress", ImageURL: "http://img/red"},
	}}
	ml := &stubML{vectors: map[string][]float32{string(redPNG): {1, 0, 0}}}
	fetcher := &stubFetcher{images: map[string][]byte{"http://img/red": redPNG}}

	engine := newTestEngine(catalog, ml, fetcher, &stubImages{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Отменённый контекст не должен оставить после себя "готовый" пустой индекс
	err := engine.Initialize(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	_, ok := engine.snapshot()
	assert.False(t, ok)

	// Следующий вызов с живым контекстом строит индекс заново
	require.NoError(t, engine.Initialize(context.Background()))

	entries, ok := engine.snapshot()
	require.True(t, ok)
	assert.Len(t, entries, 1)
}

func TestSearchDeterministicOrdering(t *testing.T) {
	redPNG := testPNG(t, color.RGBA{R: 220, G: 30, B: 30, A: 255})
	bluePNG := testPNG(t, color.RGBA{R: 30, G: 30, B: 220, A: 255})

	// Продукты 1 и 2 делят одно изображение и дают одинаковые оценки
	catalog := &stubCatalog{products: []CatalogProduct{
		{ID: "1", Name: "red dress", CategoryName: "dress", ImageURL: "http://img/red"},
		{ID: "2", Name: "red gown", CategoryName: "dress", ImageURL: "http://img/red"},
		{ID: "3", Name: "blue jeans", CategoryName: "jeans", ImageURL: "http://img/blue"},
	}}
	dressIdx := 0
	for i, entry := range categoryVocabulary {
		if entry.Label == "dress" {
			dressIdx = i
		}
	}
	ml := &stubML{
		vectors: map[string][]float32{
			string(redPNG):  {1, 0, 0},
			string(bluePNG): {0, 1, 0},
		},
		topIdx: dressIdx,
	}
	fetcher := &stubFetcher{images: map[string][]byte{
		"http://img/red":  redPNG,
		"http://img/blue": bluePNG,
	}}
	infos := map[int64]ProductInfo{
		1: {ID: 1, Name: "red dress", CategoryName: "dress", Price: 100},
		2: {ID: 2, Name: "red gown", CategoryName: "dress", Price: 200},
		3: {ID: 3, Name: "blue jeans", CategoryName: "jeans", Price: 300},
	}

	engine := newTestEngine(catalog, ml, fetcher, &stubImages{}, infos)

	extractIDs := func(res *SearchRes) []int64 {
		ids := make([]int64, 0, len(res.Results))
		for _, r := range res.Results {
			ids = append(ids, r.Product.ID)
		}
		return ids
	}

	first, err := engine.Search(context.Background(), &SearchReq{ImageData: redPNG})
	require.NoError(t, err)
	second, err := engine.Search(context.Background(), &SearchReq{ImageData: redPNG})
	require.NoError(t, err)

	// Равные оценки разрешаются порядком каталога, выдача воспроизводима
	assert.Equal(t, []int64{1, 2, 3}, extractIDs(first))
	assert.Equal(t, extractIDs(first), extractIDs(second))

	require.Len(t, first.Results, 3)
	assert.Equal(t, first.Results[0].CombinedScore, first.Results[1].CombinedScore)
	for i := range first.Results {
		assert.Equal(t, first.Results[i].CombinedScore, second.Results[i].CombinedScore)
	}
}
