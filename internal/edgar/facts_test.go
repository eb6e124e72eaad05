package edgar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/edgarwatch/internal/fetch"
	"github.com/seenimoa/edgarwatch/pkg/models"
)

const companyFactsJSON = `{
	"cik": 320193,
	"entityName": "Apple Inc.",
	"facts": {
		"dei": {"EntityCommonStockSharesOutstanding": {"units": {"shares": [{"end": "2024-10-18", "val": 15115823000}]}}},
		"us-gaap": {
			"AssetsCurrent": {"label": "Assets, Current", "units": {"USD": [
				{"end": "2023-09-30", "val": 143566000000, "fy": 2023, "fp": "FY", "form": "10-K"},
				{"end": "2024-09-28", "val": 152987000000, "fy": 2024, "fp": "FY", "form": "10-K"}
			]}},
			"EarningsPerShareBasic": {"units": {"USD/shares": [{"end": "2024-09-28", "val": 6.11}], "USD": [{"end": "2024-09-28", "val": 1}]}},
			"Broken": {"units": {"USD": [{"end": "2024-09-28", "val": null}]}}
		}
	}
}`

func TestCompanyFacts(t *testing.T) {
	stub := newStubFetcher(map[string]string{CompanyFactsURL("320193"): companyFactsJSON})

	facts, err := CompanyFacts(context.Background(), stub, "0000320193")
	require.NoError(t, err)

	assert.Len(t, facts, 2, "only us-gaap concepts with numeric values")
	assert.Equal(t, []models.FactValue{
		{End: "2023-09-30", Val: 143566000000, Unit: "USD"},
		{End: "2024-09-28", Val: 152987000000, Unit: "USD"},
	}, facts["AssetsCurrent"])
	assert.Equal(t, []models.FactValue{
		{End: "2024-09-28", Val: 1, Unit: "USD"},
		{End: "2024-09-28", Val: 6.11, Unit: "USD/shares"},
	}, facts["EarningsPerShareBasic"])
	_, ok := facts["Broken"]
	assert.False(t, ok)
}

func TestCompanyFactsUnavailable(t *testing.T) {
	_, err := CompanyFacts(context.Background(), newStubFetcher(nil), "1")
	assert.ErrorIs(t, err, fetch.ErrUnavailable)
}

func TestParseCompanyFacts(t *testing.T) {
	facts, err := ParseCompanyFacts([]byte(`{"facts": {}}`))
	require.NoError(t, err)
	assert.Empty(t, facts)

	_, err = ParseCompanyFacts([]byte(`not json`))
	assert.Error(t, err)
}

func TestCompanyFactsURL(t *testing.T) {
	assert.Equal(t, "https://data.sec.gov/api/xbrl/companyfacts/CIK0000320193.json", CompanyFactsURL("320193"))
}

func TestHoldingsDocument(t *testing.T) {
	folder := "https://www.sec.gov/Archives/edgar/data/1067983/000095012324011775/"
	stub := newStubFetcher(map[string]string{
		folder + "index.json": `{"directory": {"name": "x", "item": [
			{"name": "0000950123-24-011775-index.htm", "type": "text.gif"},
			{"name": "primary_doc.xml", "type": "text.gif"},
			{"name": "46994.xml", "type": "text.gif"},
			{"name": "Form13fInfoTable.xml", "type": "text.gif"}
		]}}`,
		folder + "Form13fInfoTable.xml": "<informationTable/>",
	})

	doc, err := HoldingsDocument(context.Background(), stub, folder)
	require.NoError(t, err)
	assert.Equal(t, "<informationTable/>", doc)

	// Missing trailing slash is tolerated.
	doc, err = HoldingsDocument(context.Background(), stub, folder[:len(folder)-1])
	require.NoError(t, err)
	assert.Equal(t, "<informationTable/>", doc)
}

func TestHoldingsDocumentAbsentOrUnavailable(t *testing.T) {
	folder := "https://www.sec.gov/Archives/edgar/data/1/000000000124000001/"
	stub := newStubFetcher(map[string]string{
		folder + "index.json": `{"directory": {"item": [{"name": "primary_doc.xml"}]}}`,
	})

	doc, err := HoldingsDocument(context.Background(), stub, folder)
	require.NoError(t, err)
	assert.Empty(t, doc)

	_, err = HoldingsDocument(context.Background(), newStubFetcher(nil), folder)
	assert.ErrorIs(t, err, fetch.ErrUnavailable)

	doc, err = HoldingsDocument(context.Background(), newStubFetcher(nil), models.PlaceholderURL)
	require.NoError(t, err)
	assert.Empty(t, doc)
}
