package pubmed

import (
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"doctor-pubs/config"
)

const (
	testBaseURL     = "https://eutils.test/entrez/eutils"
	testESearchURL  = testBaseURL + "/esearch.fcgi"
	testESummaryURL = testBaseURL + "/esummary.fcgi"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := &config.Config{
		PubMedBaseURL:      testBaseURL,
		PubMedTool:         "doctor-pubs-test",
		PubMedEmail:        "ops@example.org",
		FetchRetMax:        100,
		CacheTTLHours:      6,
		HTTPTimeoutSeconds: 20,
	}
	return NewClient(cfg, zap.NewNop())
}

func setupHTTPMock(t *testing.T, client *Client) {
	t.Helper()
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
}

func registerTwoPhase(t *testing.T) {
	t.Helper()
	httpmock.RegisterResponder("GET", testESearchURL,
		httpmock.NewStringResponder(http.StatusOK,
			`{"esearchresult":{"idlist":["111","222"]}}`))
	httpmock.RegisterResponder("GET", testESummaryURL,
		httpmock.NewStringResponder(http.StatusOK, `{
			"result": {
				"uids": ["111", "222"],
				"111": {
					"uid": "111",
					"title": "Outcomes after valve repair",
					"fulljournalname": "Journal of Cardiac Surgery",
					"source": "J Card Surg",
					"pubdate": "2021 Jun",
					"epubdate": "2021 May 3",
					"sortpubdate": "2021/05/03 00:00",
					"authors": [{"name": "Henderson AM"}, {"name": "Lopez R"}],
					"articleids": [
						{"idtype": "doi", "value": "10.1000/jcs.1234"},
						{"idtype": "pmcid", "value": "PMC111222"}
					]
				},
				"222": {
					"uid": "222",
					"title": "A year-only record",
					"source": "BMJ",
					"pubdate": "2020",
					"epubdate": "",
					"sortpubdate": "",
					"authors": [],
					"articleids": []
				}
			}
		}`))
}

func TestSearch_TwoPhase(t *testing.T) {
	client := newTestClient(t)
	setupHTTPMock(t, client)
	registerTwoPhase(t)
	records, err := client.Search("Henderson AM[au]", 100, false)

	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "111", first.PMID)
	assert.Equal(t, "Outcomes after valve repair", first.Title)
	assert.Equal(t, "Journal of Cardiac Surgery", first.Journal)
	assert.Equal(t, "2021-05-03", first.ISODate)
	assert.Equal(t, "2021 May 3", first.DisplayDate)
	assert.Equal(t, []string{"Henderson AM", "Lopez R"}, first.Authors)
	assert.Equal(t, "10.1000/jcs.1234", first.DOI)
	assert.Equal(t, "PMC111222", first.PMCID)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/111/", first.URL)

	second := records[1]
	assert.Equal(t, "BMJ", second.Journal) // source-Fallback ohne fulljournalname
	assert.Equal(t, "2020-12-31", second.ISODate)
	assert.Equal(t, "2020", second.DisplayDate)

	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestSearch_EmptyIDListCachedAsEmpty(t *testing.T) {
	client := newTestClient(t)
	setupHTTPMock(t, client)
	httpmock.RegisterResponder("GET", testESearchURL,
		httpmock.NewStringResponder(http.StatusOK, `{"esearchresult":{"idlist":[]}}`))

	records, err := client.Search("Nobody X[au]", 100, false)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, httpmock.GetTotalCallCount()) // esummary wird übersprungen

	// Zweiter Aufruf kommt aus dem Cache, kein weiterer Request.
	records, err = client.Search("Nobody X[au]", 100, false)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSearch_CacheHitAndForceRefresh(t *testing.T) {
	client := newTestClient(t)
	setupHTTPMock(t, client)
	registerTwoPhase(t)

	_, err := client.Search("Henderson AM[au]", 100, false)
	require.NoError(t, err)
	_, err = client.Search("Henderson AM[au]", 100, false)
	require.NoError(t, err)
	assert.Equal(t, 2, httpmock.GetTotalCallCount(), "zweiter Aufruf muss aus dem Cache kommen")

	// force umgeht den Cache und schreibt ihn neu.
	_, err = client.Search("Henderson AM[au]", 100, true)
	require.NoError(t, err)
	assert.Equal(t, 4, httpmock.GetTotalCallCount())

	// Der geforcte Lauf hat den Cache gewärmt.
	_, err = client.Search("Henderson AM[au]", 100, false)
	require.NoError(t, err)
	assert.Equal(t, 4, httpmock.GetTotalCallCount())
}

func TestSearch_DifferentLimitIsDifferentCacheKey(t *testing.T) {
	client := newTestClient(t)
	setupHTTPMock(t, client)
	registerTwoPhase(t)

	_, err := client.Search("Henderson AM[au]", 100, false)
	require.NoError(t, err)
	_, err = client.Search("Henderson AM[au]", 50, false)
	require.NoError(t, err)
	assert.Equal(t, 4, httpmock.GetTotalCallCount())
}

func TestSearch_ESearchErrorAborts(t *testing.T) {
	client := newTestClient(t)
	setupHTTPMock(t, client)
	httpmock.RegisterResponder("GET", testESearchURL,
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down"))
	records, err := client.Search("Henderson AM[au]", 100, false)

	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "status 502")
}

func TestSearch_ESummaryErrorAbortsWithoutPartialResults(t *testing.T) {
	client := newTestClient(t)
	setupHTTPMock(t, client)
	httpmock.RegisterResponder("GET", testESearchURL,
		httpmock.NewStringResponder(http.StatusOK, `{"esearchresult":{"idlist":["111"]}}`))
	httpmock.RegisterResponder("GET", testESummaryURL,
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))
	records, err := client.Search("Henderson AM[au]", 100, false)

	require.Error(t, err)
	assert.Nil(t, records)

	// Fehlläufe dürfen nicht gecacht werden: der nächste Versuch geht wieder raus.
	httpmock.Reset()
	registerTwoPhase(t)
	records, err = client.Search("Henderson AM[au]", 100, false)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
