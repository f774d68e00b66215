package http

import (
	"net/http"
	"testing"

	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriceToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"integer", "600", 60000, false},
		{"two decimals", "599.99", 59999, false},
		{"one decimal", "10.5", 1050, false},
		{"zero", "0", 0, false},
		{"empty", "", 0, true},
		{"garbage", "abc", 0, true},
		{"negative", "-5", 0, true},
		{"three decimals", "1.999", 0, true},
		{"over limit", "1000000001", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parsePriceToCents(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseTopK(t *testing.T) {
	got, err := parseTopK("")
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	got, err = parseTopK("7")
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	_, err = parseTopK("0")
	assert.ErrorIs(t, err, e.ErrInvalidTopK)

	_, err = parseTopK("-3")
	assert.ErrorIs(t, err, e.ErrInvalidTopK)

	_, err = parseTopK("abc")
	assert.ErrorIs(t, err, e.ErrInvalidTopK)
}

func TestParseWeights(t *testing.T) {
	w, err := parseWeights("", "", "")
	require.NoError(t, err)
	assert.Nil(t, w)

	w, err = parseWeights("0.5", "0.3", "0.2")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 0.5, w.Visual)
	assert.Equal(t, 0.3, w.Color)
	assert.Equal(t, 0.2, w.Category)

	// Частично заданные веса отклоняются
	_, err = parseWeights("0.5", "", "0.2")
	assert.ErrorIs(t, err, e.ErrMissingFields)

	_, err = parseWeights("-0.1", "0.3", "0.2")
	assert.ErrorIs(t, err, e.ErrNegativeWeight)

	_, err = parseWeights("x", "0.3", "0.2")
	assert.ErrorIs(t, err, e.ErrNegativeWeight)
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs("1,2,3")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	ids, err = parseIDs(" 4 , 5 ")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, ids)

	_, err = parseIDs("")
	assert.ErrorIs(t, err, e.ErrNoProducts)

	_, err = parseIDs("1,x")
	assert.ErrorIs(t, err, e.ErrStatusBadRequest)
}

func TestToHTTPResponse(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{e.ErrQueryImageRequired, http.StatusBadRequest},
		{e.ErrInvalidTopK, http.StatusBadRequest},
		{e.ErrNegativeWeight, http.StatusBadRequest},
		{e.ErrProductNameRequired, http.StatusBadRequest},
		{e.ErrNoProducts, http.StatusBadRequest},
		{e.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{e.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{e.ErrImageUnavailable, http.StatusUnprocessableEntity},
		{e.ErrImageUndecodable, http.StatusUnprocessableEntity},
		{e.ErrMLServiceUnavailable, http.StatusServiceUnavailable},
		{e.ErrInternalServerError, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		code, msg := ToHTTPResponse(e.Wrap("op", tc.err))
		assert.Equal(t, tc.code, code)
		assert.NotEmpty(t, msg)
	}
}
