package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shubham-shewale/showmarket/pkg/models"
)

const (
	eastmoneyMinFields = 6 // date,open,close,high,low,volume[,amount,amplitude]
	binanceMinFields   = 6 // openTime,open,high,low,close,volume[,closeTime,...]

	minuteLayout = "2006-01-02 15:04"
	dayLayout    = "2006-01-02"

	// Daily and coarser bars are stamped at the A-share close.
	marketCloseHour = 15
)

// ShanghaiLocation is the exchange time zone for A-share timestamps. Falls back to a fixed
// UTC+8 zone when tzdata is unavailable.
var ShanghaiLocation = loadShanghai()

func loadShanghai() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// EastmoneyParser converts Eastmoney kline strings into candles.
type EastmoneyParser struct {
	Location *time.Location
	// Now stamps records whose timestamp cannot be parsed at all.
	Now func() time.Time
}

// NewEastmoneyParser returns a parser in exchange time.
func NewEastmoneyParser() EastmoneyParser {
	return EastmoneyParser{Location: ShanghaiLocation, Now: time.Now}
}

// ParseRecord parses "2024-02-10 09:30,open,close,high,low,volume,...". Records with fewer than
// six fields yield ok=false. Numeric fields that fail to parse become 0.
func (p EastmoneyParser) ParseRecord(record string) (models.Candle, bool) {
	parts := strings.Split(record, ",")
	if len(parts) < eastmoneyMinFields {
		return models.Candle{}, false
	}

	return models.Candle{
		OpenTimeMs: p.ParseTime(parts[0]),
		Open:       parseFloatOrZero(parts[1]),
		Close:      parseFloatOrZero(parts[2]),
		High:       parseFloatOrZero(parts[3]),
		Low:        parseFloatOrZero(parts[4]),
		Volume:     parseFloatOrZero(parts[5]),
	}, true
}

// ParseRecords keeps input order and skips short records.
func (p EastmoneyParser) ParseRecords(records []string) []models.Candle {
	out := make([]models.Candle, 0, len(records))
	for _, r := range records {
		if c, ok := p.ParseRecord(r); ok {
			out = append(out, c)
		}
	}
	return out
}

// ParseTime accepts "YYYY-MM-DD HH:MM" and "YYYY-MM-DD"; date-only values are pinned to 15:00.
func (p EastmoneyParser) ParseTime(s string) int64 {
	loc := p.Location
	if loc == nil {
		loc = ShanghaiLocation
	}
	s = strings.TrimSpace(s)

	if t, err := time.ParseInLocation(minuteLayout, s, loc); err == nil {
		return t.UnixMilli()
	}
	if d, err := time.ParseInLocation(dayLayout, s, loc); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), marketCloseHour, 0, 0, 0, loc).UnixMilli()
	}

	now := p.Now
	if now == nil {
		now = time.Now
	}
	return now().UnixMilli()
}

// ParseBinanceKline parses one element of GET /api/v3/klines:
// [openTime, "open", "high", "low", "close", "volume", closeTime, ...].
func ParseBinanceKline(record []json.RawMessage) (models.Candle, bool) {
	if len(record) < binanceMinFields {
		return models.Candle{}, false
	}

	return models.Candle{
		OpenTimeMs: int64(rawFloatOrZero(record[0])),
		Open:       rawFloatOrZero(record[1]),
		High:       rawFloatOrZero(record[2]),
		Low:        rawFloatOrZero(record[3]),
		Close:      rawFloatOrZero(record[4]),
		Volume:     rawFloatOrZero(record[5]),
	}, true
}

// ParseBinanceKlines keeps input order and skips short records.
func ParseBinanceKlines(records [][]json.RawMessage) []models.Candle {
	out := make([]models.Candle, 0, len(records))
	for _, r := range records {
		if c, ok := ParseBinanceKline(r); ok {
			out = append(out, c)
		}
	}
	return out
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// rawFloatOrZero accepts both JSON numbers and numeric strings.
func rawFloatOrZero(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseFloatOrZero(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return float64(i)
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return 0
}
