package sales

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode"
	"unicode/utf8"
)

// Amount is a money value. The backend serialises decimals as strings, so both
// "12.50" and 12.5 decode.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	if raw == "" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	*a = Amount(v)
	return nil
}

func (a Amount) String() string {
	return strconv.FormatFloat(float64(a), 'f', 2, 64)
}

type Shop struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ShopName returns the name of shop id, or "Unknown".
func ShopName(shops []Shop, id int) string {
	for _, s := range shops {
		if s.ID == id {
			return s.Name
		}
	}
	return "Unknown"
}

// Sale is one day's takings for a shop.
type Sale struct {
	ID             int     `json:"id"`
	Shop           int     `json:"shop"`
	Date           string  `json:"date"`
	CashIn         Amount  `json:"cash_in"`
	CashOut        Amount  `json:"cash_out"`
	TillIn         Amount  `json:"till_in"`
	TillOut        Amount  `json:"till_out"`
	ClosingBalance *Amount `json:"closing_balance"`
	Image          string  `json:"image"`
}

// Day returns the sale's calendar date in UTC as YYYY-MM-DD.
func (s Sale) Day() (string, bool) {
	if t, err := time.Parse(time.RFC3339, s.Date); err == nil {
		return t.UTC().Format(time.DateOnly), true
	}
	if t, err := time.Parse(time.DateOnly, s.Date); err == nil {
		return t.Format(time.DateOnly), true
	}
	return "", false
}

// Attachment is a file uploaded with a new sale.
type Attachment struct {
	Filename string
	Content  io.Reader
}

// NewSale is the input for CreateSale.
type NewSale struct {
	Shop           int      `validate:"required,gt=0"`
	Date           string   `validate:"required,datetime=2006-01-02"`
	CashIn         float64  `validate:"gte=0"`
	CashOut        float64  `validate:"gte=0"`
	TillIn         float64  `validate:"gte=0"`
	TillOut        float64  `validate:"gte=0"`
	ClosingBalance *float64 `validate:"omitempty"`
	Image          *Attachment
}

type ShopPerformance struct {
	Shop               string  `json:"shop"`
	TotalCash          float64 `json:"total_cash"`
	AverageSalesPerDay float64 `json:"average_sales_per_day"`
	SalesToTargetRatio float64 `json:"sales_to_target_ratio"`
	ProfitMargin       float64 `json:"profit_margin"`
}

// DisplayName is the shop name with its first letter upper-cased.
func (p ShopPerformance) DisplayName() string {
	r, size := utf8.DecodeRuneInString(p.Shop)
	if r == utf8.RuneError {
		return p.Shop
	}
	return string(unicode.ToUpper(r)) + p.Shop[size:]
}

// TargetPercent renders the sales-to-target ratio as a percentage.
func (p ShopPerformance) TargetPercent() string {
	return fmt.Sprintf("%.2f%%", p.SalesToTargetRatio*100)
}

type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Performance is the dashboard payload.
type Performance struct {
	ShopData  []ShopPerformance `json:"shop_data"`
	ChartData ChartData         `json:"chart_data"`
	Alerts    []string          `json:"alerts"`
}

// FormatKSH formats v as shillings with two decimals.
func FormatKSH(v float64) string {
	return "KSH " + strconv.FormatFloat(v, 'f', 2, 64)
}
