package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

func testAnalytics() *domain.SearchAnalytics {
	return &domain.SearchAnalytics{
		TotalSearches:      10,
		UniqueQueries:      4,
		AvgExecutionTime:   12 * time.Millisecond,
		AvgResultsCount:    3.5,
		TopSearches:        []domain.TopSearch{{Query: "fest", Count: 6, AvgResults: 5}},
		ZeroResultSearches: 2,
		ZeroResultRate:     20,
		SearchesByType:     []domain.TypeCount{{Type: "all", Count: 8}, {Type: "post", Count: 2}},
	}
}

func TestAnalyticsCommand(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.analytics.stats = testAnalytics()
	ts.analytics.ctr = &domain.ClickThroughStats{TotalSearches: 10, SearchesWithClicks: 3, Rate: 30}

	before := time.Now()
	out, err := execute("analytics", "--days", "3")
	require.NoError(t, err)

	from := ts.analytics.lastRange.From
	assert.WithinDuration(t, before.AddDate(0, 0, -3), from, time.Minute)

	assert.Contains(t, out, "Searches over the last 3 days")
	assert.Contains(t, out, "Total:          10")
	assert.Contains(t, out, "Zero results:   2 (20.00%)")
	assert.Contains(t, out, "Click-through:  3 of 10 (30.00%)")
	assert.Contains(t, out, " 1. fest (6, 5.00 avg results)")
	assert.Contains(t, out, "By type:")
}

func TestAnalyticsCommand_JSON(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.analytics.stats = testAnalytics()
	ts.analytics.ctr = &domain.ClickThroughStats{TotalSearches: 10, SearchesWithClicks: 3, Rate: 30}

	out, err := execute("analytics", "--json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.EqualValues(t, 10, got["totalSearches"])
	assert.EqualValues(t, 20, got["zeroResultRate"])
	ctr, ok := got["clickThrough"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 30, ctr["ctr"])
}

func TestAnalyticsCommand_Error(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.analytics.err = domain.ErrNotFound

	_, err := execute("analytics")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnalyticsTrendsCommand(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.analytics.trends = []domain.TrendPoint{
		{Date: "2024-05-01", Count: 4, AvgResults: 2.5, AvgExecutionTime: 8 * time.Millisecond},
	}

	out, err := execute("analytics", "trends", "--days", "14")
	require.NoError(t, err)
	assert.Equal(t, 14, ts.analytics.lastDays)
	assert.Contains(t, out, "2024-05-01      4 searches  2.50 avg results  8ms")
}

func TestAnalyticsTrendsCommand_EmptyJSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("analytics", "trends", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestAnalyticsUserCommand(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.analytics.behavior = &domain.UserBehavior{
		UserID:            "u1",
		TotalSearches:     5,
		UniqueQueries:     2,
		AvgResultsClicked: 1.5,
		TopQueries:        []domain.TopSearch{{Query: "fest", Count: 4}},
	}

	out, err := execute("analytics", "user", "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, ts.analytics.lastDays)
	assert.Contains(t, out, "User u1 over the last 7 days")
	assert.Contains(t, out, "Avg results clicked: 1.5")
	assert.Contains(t, out, " 1. fest (4)")
}

func TestAnalyticsUserCommand_RequiresID(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("analytics", "user")
	assert.Error(t, err)
}
