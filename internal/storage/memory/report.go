package memory

import (
	"context"
	"sort"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/report"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

// Reports serves the report views from the committed state.
func (s *Store) Reports() report.Reader {
	return reportReader{s}
}

type reportReader struct{ s *Store }

func (r reportReader) WalletStatement(_ context.Context, sellerID uuid.UUID) (*report.Statement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.st.wallets[sellerID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	var entries []wallet.Transaction
	for _, t := range r.s.st.txns {
		if t.WalletID == w.ID {
			entries = append(entries, t)
		}
	}
	return report.NewStatement(w, entries), nil
}

func (r reportReader) AuditWallets(_ context.Context) ([]report.Discrepancy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sums := make(map[uuid.UUID]money.Money)
	for _, t := range r.s.st.txns {
		sums[t.WalletID] = sums[t.WalletID].Add(t.Amount)
	}
	out := []report.Discrepancy{}
	for _, w := range r.s.st.wallets {
		d := report.Discrepancy{
			WalletID:       w.ID,
			SellerID:       w.SellerID,
			Balance:        w.Balance,
			PendingBalance: w.PendingBalance,
			TransactionSum: sums[w.ID],
		}
		if !d.Drift().IsZero() {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SellerID.String() < out[j].SellerID.String() })
	return out, nil
}
