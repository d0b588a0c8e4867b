package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// fakePager serves scripted pages so the walk logic can be tested without
// an upstream.
type fakePager struct {
	pages    []*Page
	failPage int
	calls    int
}

func (f *fakePager) Source() string { return "fake" }

func (f *fakePager) FetchPage(_ context.Context, req PageRequest) (*Page, error) {
	f.calls++
	if f.failPage > 0 && req.Page == f.failPage {
		return nil, errors.New("upstream exploded")
	}
	return f.pages[req.Page-1], nil
}

func scriptedPage(rows, dropped int, hasMore bool) *Page {
	p := &Page{
		HasMore: hasMore,
		Fetched: rows + dropped,
		Dropped: dropped,
	}
	for i := 0; i < rows; i++ {
		p.Rows = append(p.Rows, &models.CanonicalMarketRow{ExternalID: "row"})
	}
	return p
}

func testFetchRequest() FetchRequest {
	return FetchRequest{
		OrgID: "org-1",
		DateRange: models.DateRange{
			From: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestFetchAllPages_WalksUntilNoMore(t *testing.T) {
	pager := &fakePager{pages: []*Page{
		scriptedPage(10, 0, true),
		scriptedPage(10, 2, true),
		scriptedPage(5, 0, false),
	}}

	var progress [][2]int
	req := testFetchRequest()
	req.OnProgress = func(source string, page, fetched int) {
		assert.Equal(t, "fake", source)
		progress = append(progress, [2]int{page, fetched})
	}

	result, err := fetchAllPages(context.Background(), pager, Config{PageSize: 12, MaxPages: 10}, req)
	require.NoError(t, err)
	assert.Equal(t, 3, pager.calls)
	assert.Len(t, result.Rows, 25)
	assert.Equal(t, 27, result.Fetched)
	assert.Equal(t, 2, result.Dropped)
	assert.Equal(t, [][2]int{{1, 10}, {2, 22}, {3, 27}}, progress)
}

func TestFetchAllPages_StopsAtPageCap(t *testing.T) {
	pager := &fakePager{pages: []*Page{
		scriptedPage(10, 0, true),
		scriptedPage(10, 0, true),
		scriptedPage(10, 0, true),
	}}

	result, err := fetchAllPages(context.Background(), pager, Config{PageSize: 10, MaxPages: 3}, testFetchRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page cap 3 reached")
	assert.Contains(t, err.Error(), "fake")
	assert.Equal(t, 3, pager.calls)
	assert.Len(t, result.Rows, 30, "rows fetched before the cap are kept")
}

func TestFetchAllPages_StopsOnEmptyPage(t *testing.T) {
	pager := &fakePager{pages: []*Page{
		scriptedPage(10, 0, true),
		scriptedPage(0, 0, true),
	}}

	result, err := fetchAllPages(context.Background(), pager, Config{PageSize: 10, MaxPages: 10}, testFetchRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, pager.calls, "an empty page ends the walk even with has_more set")
	assert.Len(t, result.Rows, 10)
}

func TestFetchAllPages_PropagatesFetchError(t *testing.T) {
	pager := &fakePager{
		pages:    []*Page{scriptedPage(10, 0, true), nil},
		failPage: 2,
	}

	result, err := fetchAllPages(context.Background(), pager, Config{PageSize: 10, MaxPages: 10}, testFetchRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")
	assert.Len(t, result.Rows, 10, "partial progress survives the failure")
}

func TestParseUpstreamDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"plain date", "2026-04-01", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), false},
		{"rfc3339", "2026-04-01T15:04:05Z", time.Date(2026, 4, 1, 15, 4, 5, 0, time.UTC), false},
		{"slashes rejected", "01/04/2026", time.Time{}, true},
		{"empty rejected", "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUpstreamDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want))
		})
	}
}
