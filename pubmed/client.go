package pubmed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"doctor-pubs/config"
	"doctor-pubs/models"
)

// Client kapselt das zweiphasige esearch/esummary-Protokoll gegen die
// NCBI-eutils-API inklusive zeitbegrenztem Antwort-Cache.
type Client struct {
	Config *config.Config
	Logger *zap.Logger

	// Ein Timeout pro Aufruf, keine Retries; ein Fehlschlag bricht den
	// gesamten Fetch ab.
	httpClient *http.Client
	cache      *cache.Cache
}

// NewClient erstellt eine neue Instanz des PubMed-Clients.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		Config:     cfg,
		Logger:     logger,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout()},
		cache:      cache.New(cfg.CacheTTL(), cfg.CacheTTL()*2),
	}
}

// Search führt eine vollständige Suche durch: esearch liefert die geordnete
// PMID-Liste, esummary die Metadaten für alle IDs in einem Batch. Jeder Treffer
// wird normalisiert zurückgegeben. Erfolgreiche Ergebnisse (auch leere) landen
// im Cache; force überspringt den Cache-Lookup, schreibt aber trotzdem, damit
// nachfolgende ungeforcte Aufrufe profitieren.
func (c *Client) Search(term string, limit int, force bool) ([]*models.Record, error) {
	log := c.Logger.With(zap.String("term", term), zap.Int("retmax", limit))

	cacheKey := term + "|" + strconv.Itoa(limit)
	if !force {
		if cached, found := c.cache.Get(cacheKey); found {
			if records, ok := cached.([]*models.Record); ok {
				log.Debug("Cache-Treffer für PubMed-Suche", zap.Int("count", len(records)))
				return records, nil
			}
		}
	}

	ids, err := c.searchIDs(term, limit)
	if err != nil {
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}
	if len(ids) == 0 {
		// Auch leere Ergebnisse cachen, sonst hämmern wir die API für
		// Queries, die legitimerweise nichts liefern.
		empty := []*models.Record{}
		c.cache.Set(cacheKey, empty, cache.DefaultExpiration)
		log.Info("PubMed-Suche ohne Treffer.")
		return empty, nil
	}

	records, err := c.fetchSummaries(ids)
	if err != nil {
		return nil, fmt.Errorf("pubmed esummary: %w", err)
	}

	c.cache.Set(cacheKey, records, cache.DefaultExpiration)
	log.Info("PubMed-Suche abgeschlossen", zap.Int("count", len(records)))
	return records, nil
}

// searchIDs führt die ESearch-Abfrage durch und gibt die geordnete PMID-Liste zurück.
func (c *Client) searchIDs(term string, limit int) ([]string, error) {
	params := c.baseParams()
	params.Set("term", term)
	params.Set("sort", "pub date")
	params.Set("retmax", strconv.Itoa(limit))

	searchURL := fmt.Sprintf("%s/esearch.fcgi?%s", c.Config.PubMedBaseURL, params.Encode())
	c.Logger.Debug("Rufe ESearch-URL auf", zap.String("url", searchURL))

	resp, err := c.httpClient.Get(searchURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("esearch failed: status %d", resp.StatusCode)
	}

	var esearchResp ESearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&esearchResp); err != nil {
		return nil, err
	}
	return esearchResp.ESearchResult.IdList, nil
}

// fetchSummaries holt die Metadaten aller PMIDs in einem einzigen Batch-Request.
func (c *Client) fetchSummaries(ids []string) ([]*models.Record, error) {
	params := c.baseParams()
	params.Set("id", strings.Join(ids, ","))

	summaryURL := fmt.Sprintf("%s/esummary.fcgi?%s", c.Config.PubMedBaseURL, params.Encode())
	c.Logger.Debug("Rufe ESummary-URL auf", zap.String("url", summaryURL))

	resp, err := c.httpClient.Get(summaryURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("esummary failed: status %d", resp.StatusCode)
	}

	var summaryResp ESummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&summaryResp); err != nil {
		return nil, err
	}

	var uids []string
	if raw, ok := summaryResp.Result["uids"]; ok {
		if err := json.Unmarshal(raw, &uids); err != nil {
			return nil, fmt.Errorf("esummary uids: %w", err)
		}
	}

	records := make([]*models.Record, 0, len(uids))
	for _, uid := range uids {
		raw, ok := summaryResp.Result[uid]
		if !ok {
			continue
		}
		var item SummaryItem
		if err := json.Unmarshal(raw, &item); err != nil {
			c.Logger.Warn("Konnte esummary-Eintrag nicht parsen", zap.String("pmid", uid), zap.Error(err))
			continue
		}
		records = append(records, normalizeItem(uid, &item))
	}
	return records, nil
}

// baseParams liefert die von der NCBI-Richtlinie geforderten Standardparameter.
func (c *Client) baseParams() url.Values {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("retmode", "json")
	params.Set("tool", c.Config.PubMedTool)
	params.Set("email", c.Config.PubMedEmail)
	return params
}

// normalizeItem überführt einen esummary-Eintrag in unser normalisiertes Record.
func normalizeItem(pmid string, item *SummaryItem) *models.Record {
	rec := &models.Record{
		PMID:        pmid,
		Title:       item.Title,
		Journal:     item.FullJournalName,
		PubDate:     item.PubDate,
		EPubDate:    item.EPubDate,
		SortPubDate: item.SortPubDate,
		ISODate:     CombineISO(item.SortPubDate, item.EPubDate, item.PubDate),
		DisplayDate: DisplayDate(item.EPubDate, item.PubDate),
		URL:         fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid),
	}
	if rec.Journal == "" {
		rec.Journal = item.Source
	}

	for _, author := range item.Authors {
		if author.Name != "" {
			rec.Authors = append(rec.Authors, author.Name)
		}
	}
	for _, id := range item.ArticleIDs {
		switch id.IDType {
		case "doi":
			rec.DOI = id.Value
		case "pmcid":
			rec.PMCID = id.Value
		}
	}
	return rec
}
