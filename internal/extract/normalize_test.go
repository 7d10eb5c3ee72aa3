package extract

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

func TestNormalize_BalanceSheet(t *testing.T) {
	records, observed, err := Normalize(contracts.GroupBalanceSheet, 7, []byte(ibmBalanceSheet))
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.NotNil(t, observed)
	assert.Equal(t, "2024-03-31", observed.Format(dateLayout))

	first := records[0]
	assert.Equal(t, int64(7), first.SymbolID)
	assert.Equal(t, "2023-12-31", first.Key().Period)
	assert.Equal(t, ReportAnnual, first.ReportType)
	assert.Equal(t, 135241000000.0, first.Fields["totalAssets"])
	assert.Nil(t, first.Fields["goodwill"])
	assert.Equal(t, "USD", first.Fields["reportedCurrency"])
	assert.NotContains(t, first.Fields, "fiscalDateEnding")
	assert.Len(t, first.ContentHash, 64)

	// same content in a different report type hashes the same but keys differ
	assert.Equal(t, records[0].ContentHash, records[1].ContentHash)
	assert.NotEqual(t, records[0].Key(), records[1].Key())
}

func TestNormalize_Daily(t *testing.T) {
	payload := `{
	  "Meta Data": {"2. Symbol": "IBM"},
	  "Time Series (Daily)": {
	    "2024-05-17": {"1. open": "168.97", "2. high": "169.11", "3. low": "167.33", "4. close": "169.03", "5. adjusted close": "169.03", "6. volume": "2956387", "7. dividend amount": "0.0000", "8. split coefficient": "1.0"},
	    "2024-05-16": {"1. open": "167.51", "2. high": "168.99", "3. low": "166.83", "4. close": "168.26", "5. adjusted close": "168.26", "6. volume": "3454382", "7. dividend amount": "0.0000", "8. split coefficient": "1.0"}
	  }
	}`

	records, observed, err := Normalize(contracts.GroupDailyPrices, 1, []byte(payload))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-05-16", records[0].Key().Period)
	assert.Equal(t, "2024-05-17", observed.Format(dateLayout))
	assert.Equal(t, 169.03, records[1].Fields["adjusted_close"])
	assert.Equal(t, 2956387.0, records[1].Fields["volume"])
	assert.Equal(t, ReportDaily, records[1].ReportType)

	args, err := dailyArgs(uuid.Nil, records[1])
	require.NoError(t, err)
	vol := args[8].(*int64)
	assert.Equal(t, int64(2956387), *vol)
}

func TestNormalize_Overview(t *testing.T) {
	payload := `{"Symbol":"IBM","Sector":"TECHNOLOGY","LatestQuarter":"2024-03-31","PERatio":"19.2","EPS":"None"}`

	records, observed, err := Normalize(contracts.GroupCompanyOverview, 1, []byte(payload))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ReportOverview, records[0].ReportType)
	assert.Equal(t, "TECHNOLOGY", records[0].Fields["Sector"])
	assert.Equal(t, 19.2, records[0].Fields["PERatio"])
	assert.Nil(t, records[0].Fields["EPS"])
	assert.Equal(t, "2024-03-31", observed.Format(dateLayout))
}

func TestNormalize_Earnings(t *testing.T) {
	payload := `{
	  "annualEarnings": [{"fiscalDateEnding": "2023-12-31", "reportedEPS": "9.61"}],
	  "quarterlyEarnings": [{"fiscalDateEnding": "2024-03-31", "reportedDate": "2024-04-24", "reportedEPS": "1.68", "estimatedEPS": "1.6", "surprise": "0.08", "surprisePercentage": "5"}]
	}`

	records, _, err := Normalize(contracts.GroupEarnings, 1, []byte(payload))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-04-24", records[1].Fields["reportedDate"])
	assert.Equal(t, 1.68, records[1].Fields["reportedEPS"])
}

func TestNormalize_BadDate(t *testing.T) {
	_, _, err := Normalize(contracts.GroupCashFlow, 1, []byte(`{"annualReports":[{"fiscalDateEnding":"soon"}]}`))
	assert.Error(t, err)

	_, _, err = Normalize(contracts.GroupSignalEvents, 1, []byte(`{}`))
	assert.Error(t, err)
}

func TestHashRecord_IgnoresKeyOrder(t *testing.T) {
	a, err := HashRecord(map[string]any{"x": 1.0, "y": "b", "z": nil})
	require.NoError(t, err)
	b, err := HashRecord(map[string]any{"z": nil, "y": "b", "x": 1.0})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := HashRecord(map[string]any{"x": 2.0, "y": "b", "z": nil})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestChangedRecords(t *testing.T) {
	records, _, err := Normalize(contracts.GroupBalanceSheet, 1, []byte(ibmBalanceSheet))
	require.NoError(t, err)

	stored := map[contracts.FactKey]string{
		records[0].Key(): records[0].ContentHash,
		records[1].Key(): "stale",
	}
	changed := ChangedRecords(records, stored)
	require.Len(t, changed, 2)
	assert.Equal(t, records[1].Key(), changed[0].Key())
	assert.Equal(t, records[2].Key(), changed[1].Key())
}
