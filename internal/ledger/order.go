package ledger

import "sort"

// sortNewestFirst orders by date desc, then created_at desc. The input is
// expected in insertion order; ties fall back to the latest insertion first.
func sortNewestFirst(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	for i, tx := range txs {
		out[len(txs)-1-i] = tx
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func paginate(txs []Transaction, page Page) []Transaction {
	if page.Offset >= len(txs) {
		return []Transaction{}
	}
	end := page.Offset + page.Limit
	if end > len(txs) {
		end = len(txs)
	}
	return txs[page.Offset:end]
}
