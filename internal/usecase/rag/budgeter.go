package rag

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/realtorbot/internal/domain/search/result"
)

// MatchSeparator joins match texts in the context block.
const MatchSeparator = "\n---\n"

// Budget is the prompt token allowance of one turn.
type Budget struct {
	Total    int // model context window
	Reserved int // kept free for the response
}

// DefaultBudget returns the standard 4096/1000 split.
func DefaultBudget() Budget {
	return Budget{Total: 4096, Reserved: 1000}
}

// Available is what context and history may spend together.
func (b Budget) Available() int {
	return max(b.Total-b.Reserved, 0)
}

// NoMatchesNotice is the context used when retrieval found nothing. It keeps
// the model from inventing listings.
func NoMatchesNotice(tenantName string) string {
	return fmt.Sprintf(
		"Não foram encontrados imóveis da %s que correspondam a este pedido. "+
			"Não inventes imóveis, preços ou características; diz ao visitante que não tens essa informação "+
			"e sugere que reformule a pesquisa ou contacte a %s.",
		tenantName, tenantName)
}

// TenantReminder restricts recommendations to the tenant's own portfolio.
func TenantReminder(tenantName string) string {
	return fmt.Sprintf("Recomenda apenas imóveis da %s.", tenantName)
}

// Assembly is the budgeted context and history of one turn.
type Assembly struct {
	Context       string
	ContextTokens int
	Matches       int // matches that made it into Context
	History       []string
	HistoryTokens int
}

// Budgeter fits retrieved context and chat history into the token budget.
type Budgeter struct {
	tok    Tokenizer
	budget Budget
}

// NewBudgeter creates a Budgeter.
func NewBudgeter(tok Tokenizer, budget Budget) *Budgeter {
	return &Budgeter{tok: tok, budget: budget}
}

// Assemble builds the context block, then spends what is left on the most
// recent history lines. ContextTokens+HistoryTokens never exceeds the budget.
func (b *Budgeter) Assemble(matches []result.Match, tenantName, aggregate string, history []string) Assembly {
	avail := b.budget.Available()

	suffix := TenantReminder(tenantName)
	if aggregate != "" {
		suffix += "\nInformação adicional: " + aggregate
	}

	var asm Assembly
	if len(matches) == 0 {
		asm.Context = NoMatchesNotice(tenantName) + "\n\n" + suffix
	} else {
		texts := make([]string, len(matches))
		for i, m := range matches {
			texts[i] = m.Text()
		}
		asm.Context, asm.Matches = b.fitMatches(texts, suffix, avail)
	}

	asm.ContextTokens = b.tok.Count(asm.Context)
	if asm.ContextTokens > avail {
		asm.Context = b.tok.Truncate(asm.Context, avail)
		asm.ContextTokens = b.tok.Count(asm.Context)
	}

	asm.History, asm.HistoryTokens = b.fitHistory(history, avail-asm.ContextTokens)
	return asm
}

// fitMatches keeps the highest-ranked texts that fit and truncates the first
// one that does not into the space left.
func (b *Budgeter) fitMatches(texts []string, suffix string, avail int) (string, int) {
	compose := func(kept []string) string {
		if len(kept) == 0 {
			return suffix
		}
		return strings.Join(kept, MatchSeparator) + "\n\n" + suffix
	}

	keep := len(texts)
	for keep > 0 && b.tok.Count(compose(texts[:keep])) > avail {
		keep--
	}
	out := compose(texts[:keep])
	if keep == len(texts) {
		return out, keep
	}

	room := avail - b.tok.Count(out) - b.tok.Count(MatchSeparator)
	for room > 0 {
		partial := b.tok.Truncate(texts[keep], room)
		if partial == "" {
			break
		}
		kept := append(append([]string{}, texts[:keep]...), partial)
		candidate := compose(kept)
		over := b.tok.Count(candidate) - avail
		if over <= 0 {
			return candidate, keep + 1
		}
		// token counts do not add up exactly across joins
		room -= over
	}
	return out, keep
}

// fitHistory walks from the newest line backwards and stops at the first
// line that does not fit. The result is in chronological order.
func (b *Budgeter) fitHistory(lines []string, remaining int) ([]string, int) {
	var (
		kept  []string
		spent int
	)
	for i := len(lines) - 1; i >= 0; i-- {
		cost := b.tok.Count(lines[i])
		if spent+cost > remaining {
			break
		}
		spent += cost
		kept = append(kept, lines[i])
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept, spent
}
