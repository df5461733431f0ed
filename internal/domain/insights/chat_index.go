package insights

import (
	"fmt"
	"slices"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
)

// chatDocument is the searchable form of a transaction.
type chatDocument struct {
	ID          string  `json:"id"`
	Merchant    string  `json:"merchant"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Direction   string  `json:"direction"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
}

// chatIndex is an in-memory full-text index over one owner's window, built
// per chat request.
type chatIndex struct {
	index bleve.Index
	byID  map[string]ledger.Transaction
}

func buildChatMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	exact.IncludeInAll = false

	amount := bleve.NewNumericFieldMapping()
	amount.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("id", exact)
	doc.AddFieldMappingsAt("merchant", text)
	doc.AddFieldMappingsAt("description", text)
	doc.AddFieldMappingsAt("category", text)
	doc.AddFieldMappingsAt("direction", text)
	doc.AddFieldMappingsAt("amount", amount)
	doc.AddFieldMappingsAt("date", exact)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = en.AnalyzerName
	return m
}

func newChatIndex(txs []ledger.Transaction) (*chatIndex, error) {
	index, err := bleve.NewMemOnly(buildChatMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create chat index: %w", err)
	}

	ci := &chatIndex{index: index, byID: make(map[string]ledger.Transaction, len(txs))}
	batch := index.NewBatch()
	for _, tx := range txs {
		id := tx.ID.String()
		amount, _ := tx.AbsAmount().Float64()
		doc := chatDocument{
			ID:          id,
			Merchant:    tx.Merchant,
			Description: tx.Description,
			Category:    string(tx.Category),
			Direction:   string(tx.Direction),
			Amount:      amount,
			Date:        tx.Date.Format("2006-01-02"),
		}
		if err := batch.Index(id, doc); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to index transaction %s: %w", id, err)
		}
		ci.byID[id] = tx
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to execute batch index: %w", err)
	}
	return ci, nil
}

// Search returns the transactions most relevant to query, best first.
func (ci *chatIndex) Search(query string, limit int) ([]ledger.Transaction, error) {
	match := bleve.NewMatchQuery(query)
	match.SetFuzziness(1)

	req := bleve.NewSearchRequest(match)
	req.Size = limit

	res, err := ci.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]ledger.Transaction, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if tx, ok := ci.byID[hit.ID]; ok {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (ci *chatIndex) Close() error {
	return ci.index.Close()
}

// relevantTransactions picks chat context: the best index matches for the
// message, or the most recent transactions when nothing matches.
func relevantTransactions(txs []ledger.Transaction, message string, limit int) []ledger.Transaction {
	if len(txs) == 0 {
		return nil
	}

	if ci, err := newChatIndex(txs); err == nil {
		defer ci.Close()
		if hits, err := ci.Search(message, limit); err == nil && len(hits) > 0 {
			return hits
		}
	}

	recent := make([]ledger.Transaction, len(txs))
	copy(recent, txs)
	slices.SortStableFunc(recent, func(a, b ledger.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent
}
