package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/lexicon"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/money"
	"github.com/daramad/daramad-engine/pkg/stats"
)

func newMoneyMux() *http.ServeMux {
	mux := http.NewServeMux()
	NewMoneyHandler(money.NewParser(lexicon.Default()), money.Options{}, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestMoneyHandler_Parse(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus models.MoneyStatus
		wantValue  int64
	}{
		{"default profile", map[string]any{"text": "۱۰ میلیون تومان"}, models.MoneyOK, 10_000_000},
		{"income profile", map[string]any{"text": "2.5 میلیون", "profile": "income"}, models.MoneyOK, 2_500_000},
		{"investment asset", map[string]any{"text": "ماشین", "profile": "investment"}, models.MoneyAssetOrNonCash, 0},
		{"income asset", map[string]any{"text": "ماشین"}, models.MoneyInvalid, 0},
		{"non-string text", `{"text": ["10 میلیون"]}`, models.MoneyUnknown, 0},
		{"numeric text", `{"text": 15000000}`, models.MoneyUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, newMoneyMux(), http.MethodPost, "/api/money/parse", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var got models.MonetaryValue
			decodeData(t, rec, &got)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantValue, got.Value)
		})
	}
}

func TestMoneyHandler_Parse_Range(t *testing.T) {
	rec := doJSON(t, newMoneyMux(), http.MethodPost, "/api/money/parse", map[string]any{"text": "۱۰ الی ۱۵ میلیون تومن"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.MonetaryValue
	decodeData(t, rec, &got)
	assert.Equal(t, models.MoneyOK, got.Status)
	assert.True(t, got.IsRange)
	assert.Equal(t, int64(12_500_000), got.Value)
	assert.Equal(t, int64(10_000_000), got.Min)
	assert.Equal(t, int64(15_000_000), got.Max)
}

func TestMoneyHandler_Parse_InvalidProfile(t *testing.T) {
	rec := doJSON(t, newMoneyMux(), http.MethodPost, "/api/money/parse", map[string]any{"text": "10", "profile": "salary"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_profile", decodeError(t, rec)["error"])
}

func TestMoneyHandler_Outliers(t *testing.T) {
	rec := doJSON(t, newMoneyMux(), http.MethodPost, "/api/outliers", OutliersRequest{
		Values: []float64{20_000_000, 22_000_000, 24_000_000, 26_000_000, 900_000_000},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var got OutliersResponse
	decodeData(t, rec, &got)
	assert.Equal(t, stats.MethodIQR, got.Method)
	assert.True(t, got.HasOutliers)
	assert.Equal(t, []float64{900_000_000}, got.Outliers)
	assert.Equal(t, 5, got.Count)
	assert.Equal(t, 1, got.Excluded)
	assert.InDelta(t, 23_000_000, got.Central, 0.5)
}

func TestMoneyHandler_Outliers_Empty(t *testing.T) {
	rec := doJSON(t, newMoneyMux(), http.MethodPost, "/api/outliers", `{"values": []}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got OutliersResponse
	decodeData(t, rec, &got)
	assert.Equal(t, stats.MethodNone, got.Method)
	assert.False(t, got.HasOutliers)
	assert.Zero(t, got.Count)
}

func TestMoneyHandler_Outliers_TooManyValues(t *testing.T) {
	values := strings.Repeat("1,", maxOutlierValues) + "1"
	rec := doJSON(t, newMoneyMux(), http.MethodPost, "/api/outliers", `{"values": [`+values+`]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "too_many_values", decodeError(t, rec)["error"])
}
