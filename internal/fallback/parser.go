package fallback

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/llm"
)

// storePatterns match known brands in the receipt header. Weights break ties
// when a scan garbles one brand into another; higher wins.
var storePatterns = []struct {
	re     *regexp.Regexp
	name   string
	weight int
}{
	{regexp.MustCompile(`(?i)\blidl\b`), "Lidl", 3},
	{regexp.MustCompile(`(?i)\bbiedronka\b`), "Biedronka", 3},
	{regexp.MustCompile(`(?i)\bcarrefour\b`), "Carrefour", 3},
	{regexp.MustCompile(`(?i)\bauchan\b`), "Auchan", 3},
	{regexp.MustCompile(`(?i)[żz]abka`), "Żabka", 3},
	{regexp.MustCompile(`(?i)\bkaufland\b`), "Kaufland", 3},
	{regexp.MustCompile(`(?i)\brossmann\b`), "Rossmann", 3},
	{regexp.MustCompile(`(?i)\bstokrotka\b`), "Stokrotka", 3},
	{regexp.MustCompile(`(?i)\blewiatan\b`), "Lewiatan", 2},
	{regexp.MustCompile(`(?i)\bnetto\b`), "Netto", 2},
	{regexp.MustCompile(`(?i)\baldi\b`), "Aldi", 2},
	{regexp.MustCompile(`(?i)\btesco\b`), "Tesco", 2},
}

var (
	reNoise   = regexp.MustCompile(`(?i)paragon\s+fiskalny|^nip\b|nr\s*sys|kasjer|kasa\s|^tel\.|^www\.|^-+$|^=+$`)
	reAddress = regexp.MustCompile(`(?i)^ul\.|\d{2}-\d{3}`)
	reDate    = regexp.MustCompile(`\b(\d{4}[-/]\d{2}[-/]\d{2}|\d{1,2}[./-]\d{1,2}[./-]\d{4})\b`)
	reTotal   = regexp.MustCompile(`(?i)^(?:suma|razem|total|do\s+zap[łl]aty)\b.*?(\d+[.,]\d{2})`)
	reVAT     = regexp.MustCompile(`(?i)^PTU\s+([A-G])\s+\d+(?:[.,]\d+)?\s*%\s+(\d+[.,]\d{2})`)

	reQtyItem = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*[xX*]\s+(.+?)\s+(\d+[.,]\d{2})(?:\s+(\d+[.,]\d{2}))?$`)
	reItem    = regexp.MustCompile(`^(.+?)\s+(\d+[.,]\d{2})(?:\s*(?:z[łl]|PLN))?(?:\s+([A-G]))?$`)
)

// Parser is the deterministic last resort behind the language model. It never
// returns an error; a receipt it cannot read comes back mostly empty and the
// validation stage decides what that is worth.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

func (p *Parser) Parse(ocrText string) entity.ExtractedReceipt {
	out := entity.ExtractedReceipt{Source: "fallback"}

	storeWeight := 0
	totalSeen := false

	for lineNo, raw := range strings.Split(ocrText, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || reNoise.MatchString(line) {
			continue
		}

		// Header zone: brand and address only show up near the top.
		if lineNo < 6 {
			for _, sp := range storePatterns {
				if sp.weight > storeWeight && sp.re.MatchString(line) {
					out.Store = sp.name
					storeWeight = sp.weight
				}
			}
			if out.Address == "" && reAddress.MatchString(line) {
				out.Address = line
				continue
			}
		}

		if out.Date == "" {
			if m := reDate.FindStringSubmatch(line); m != nil {
				if iso, ok := llm.NormalizeDate(m[1]); ok {
					out.Date = iso
					continue
				}
			}
		}

		if m := reTotal.FindStringSubmatch(line); m != nil {
			v := parsePrice(m[1])
			out.Total = &v
			totalSeen = true
			continue
		}

		if m := reVAT.FindStringSubmatch(line); m != nil {
			if out.VAT == nil {
				out.VAT = make(map[string]float64)
			}
			out.VAT[strings.ToUpper(m[1])] = parsePrice(m[2])
			continue
		}

		// Everything below the total line is payment noise, not items.
		if totalSeen {
			continue
		}

		if m := reQtyItem.FindStringSubmatch(line); m != nil {
			qty := parsePrice(m[1])
			unit := parsePrice(m[3])
			total := unit * qty
			if m[4] != "" {
				total = parsePrice(m[4])
			}
			out.Items = append(out.Items, entity.LineItem{
				Name:       strings.TrimSpace(m[2]),
				Quantity:   qty,
				UnitPrice:  unit,
				TotalPrice: total,
			})
			continue
		}

		if m := reItem.FindStringSubmatch(line); m != nil {
			price := parsePrice(m[2])
			out.Items = append(out.Items, entity.LineItem{
				Name:       strings.TrimSpace(m[1]),
				Quantity:   1,
				UnitPrice:  price,
				TotalPrice: price,
				VATRate:    strings.ToUpper(m[3]),
			})
		}
	}

	p.logger.Debug("fallback.parse.done",
		"store", out.Store,
		"items", len(out.Items),
		"has_total", out.Total != nil,
	)
	return out
}

func parsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	return v
}
