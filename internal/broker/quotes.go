package broker

import (
	"context"
	"net/url"
	"strings"

	apperrors "kis-board/internal/errors"
	"kis-board/internal/models"
	"kis-board/pkg/utils"
)

type domesticPriceResponse struct {
	Output *struct {
		Current string `json:"stck_prpr"`
		Start   string `json:"stck_sdpr"`
	} `json:"output"`
}

type foreignPriceResponse struct {
	Output *struct {
		Last string `json:"last"`
		Base string `json:"base"`
		Rate string `json:"rate"`
	} `json:"output"`
}

type domesticIndexResponse struct {
	Output1 *struct {
		Current       string `json:"bstp_nmix_prpr"`
		PreviousClose string `json:"prdy_nmix"`
		Rate          string `json:"bstp_nmix_prdy_ctrt"`
	} `json:"output1"`
}

type foreignIndexResponse struct {
	Output1 *struct {
		Current       string `json:"ovrs_nmix_prpr"`
		PreviousClose string `json:"ovrs_nmix_prdy_clpr"`
		Rate          string `json:"prdy_ctrt"`
	} `json:"output1"`
}

type conclusionsResponse struct {
	Output2 []struct {
		Time   string `json:"stck_cntg_hour"`
		Price  string `json:"stck_prpr"`
		Sign   string `json:"prdy_vrss_sign"`
		Change string `json:"prdy_vrss"`
		Volume string `json:"cntg_vol"`
	} `json:"output2"`
}

// DomesticPrice returns the current and start-of-day price of a KRX security.
// The rate is computed locally and floored to two decimals.
func (c *KISClient) DomesticPrice(ctx context.Context, code string) (models.Quote, error) {
	var resp domesticPriceResponse
	err := c.get(ctx, request{
		path: pathDomesticPrice,
		trID: TrDomesticPrice,
		params: url.Values{
			"fid_cond_mrkt_div_code": {"J"},
			"fid_input_iscd":         {code},
		},
	}, &resp)
	if err != nil {
		return models.Quote{}, err
	}
	if resp.Output == nil {
		return models.Quote{}, apperrors.NewDataError(TrDomesticPrice, code, "missing output", nil)
	}

	current, err := parseNumber(TrDomesticPrice, code, "stck_prpr", resp.Output.Current)
	if err != nil {
		return models.Quote{}, err
	}
	start, err := parseNumber(TrDomesticPrice, code, "stck_sdpr", resp.Output.Start)
	if err != nil {
		return models.Quote{}, err
	}

	return models.Quote{
		Current:   current,
		Reference: start,
		Rate:      utils.FloorRate(current, start),
	}, nil
}

// ForeignPrice returns the last and base price of an overseas security.
// The rate is passed through as upstream reports it.
func (c *KISClient) ForeignPrice(ctx context.Context, market models.Market, code string) (models.Quote, error) {
	var resp foreignPriceResponse
	err := c.get(ctx, request{
		path: pathForeignPrice,
		trID: TrForeignPrice,
		params: url.Values{
			"AUTH": {""},
			"EXCD": {string(market)},
			"SYMB": {code},
		},
	}, &resp)
	if err != nil {
		return models.Quote{}, err
	}
	if resp.Output == nil {
		return models.Quote{}, apperrors.NewDataError(TrForeignPrice, code, "missing output", nil)
	}

	last, err := parseNumber(TrForeignPrice, code, "last", resp.Output.Last)
	if err != nil {
		return models.Quote{}, err
	}
	base, err := parseNumber(TrForeignPrice, code, "base", resp.Output.Base)
	if err != nil {
		return models.Quote{}, err
	}

	return models.Quote{
		Current:   last,
		Reference: base,
		Rate:      resp.Output.Rate,
	}, nil
}

// CurrentPrice dispatches to the domestic or overseas lookup.
func (c *KISClient) CurrentPrice(ctx context.Context, market models.Market, code string) (models.Quote, error) {
	if market.IsDomestic() {
		return c.DomesticPrice(ctx, code)
	}
	return c.ForeignPrice(ctx, market, code)
}

// DomesticIndexSnapshot returns today's composite index reading.
func (c *KISClient) DomesticIndexSnapshot(ctx context.Context) (models.MarketSnapshot, error) {
	today := utils.DateStamp(c.now(), c.loc)
	snapshot := make(models.MarketSnapshot, len(domesticIndexes))

	for _, src := range domesticIndexes {
		var resp domesticIndexResponse
		err := c.get(ctx, request{
			path:     pathDomesticIndex,
			trID:     TrDomesticIndex,
			custType: true,
			params:   chartParams(src, today),
		}, &resp)
		if err != nil {
			return nil, err
		}
		if resp.Output1 == nil {
			return nil, apperrors.NewDataError(TrDomesticIndex, src.Code, "missing output1", nil)
		}

		q, err := indexQuote(TrDomesticIndex, src, resp.Output1.Current, resp.Output1.PreviousClose, resp.Output1.Rate)
		if err != nil {
			return nil, err
		}
		snapshot[src.Label] = q
	}

	return snapshot, nil
}

// ForeignIndexSnapshot returns today's overseas composite index and FX readings.
func (c *KISClient) ForeignIndexSnapshot(ctx context.Context) (models.MarketSnapshot, error) {
	today := utils.DateStamp(c.now(), c.loc)
	snapshot := make(models.MarketSnapshot, len(foreignIndexes))

	for _, src := range foreignIndexes {
		var resp foreignIndexResponse
		err := c.get(ctx, request{
			path:     pathForeignIndex,
			trID:     TrForeignIndex,
			custType: true,
			params:   chartParams(src, today),
		}, &resp)
		if err != nil {
			return nil, err
		}
		if resp.Output1 == nil {
			return nil, apperrors.NewDataError(TrForeignIndex, src.Code, "missing output1", nil)
		}

		q, err := indexQuote(TrForeignIndex, src, resp.Output1.Current, resp.Output1.PreviousClose, resp.Output1.Rate)
		if err != nil {
			return nil, err
		}
		snapshot[src.Label] = q
	}

	return snapshot, nil
}

// Snapshot fetches the overseas readings, then merges the domestic ones.
func (c *KISClient) Snapshot(ctx context.Context) (models.MarketSnapshot, error) {
	snapshot, err := c.ForeignIndexSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	domestic, err := c.DomesticIndexSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Merge(domestic)
	return snapshot, nil
}

// Conclusions returns intraday executions of a KRX security up to hour (HHMMSS).
// An empty hour means the current time in the domestic timezone.
func (c *KISClient) Conclusions(ctx context.Context, code, hour string) ([]models.Conclusion, error) {
	if hour == "" {
		hour = c.now().In(c.loc).Format("150405")
	}

	var resp conclusionsResponse
	err := c.get(ctx, request{
		path:     pathTimeConclusions,
		trID:     TrTimeConclusions,
		custType: true,
		params: url.Values{
			"FID_COND_MRKT_DIV_CODE": {"J"},
			"FID_INPUT_ISCD":         {code},
			"FID_INPUT_HOUR_1":       {hour},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]models.Conclusion, 0, len(resp.Output2))
	for _, item := range resp.Output2 {
		price, err := parseNumber(TrTimeConclusions, code, "stck_prpr", item.Price)
		if err != nil {
			return nil, err
		}
		change, err := parseNumber(TrTimeConclusions, code, "prdy_vrss", item.Change)
		if err != nil {
			return nil, err
		}
		volume, err := parseNumber(TrTimeConclusions, code, "cntg_vol", item.Volume)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Conclusion{
			Time:   strings.TrimSpace(item.Time),
			Price:  price,
			Sign:   strings.TrimSpace(item.Sign),
			Change: change,
			Volume: int64(volume),
		})
	}

	return out, nil
}

func chartParams(src indexSource, date string) url.Values {
	return url.Values{
		"FID_COND_MRKT_DIV_CODE": {src.Market},
		"FID_INPUT_ISCD":         {src.Code},
		"FID_INPUT_DATE_1":       {date},
		"FID_INPUT_DATE_2":       {date},
		"FID_PERIOD_DIV_CODE":    {"D"},
	}
}

func indexQuote(trID string, src indexSource, current, previous, rate string) (models.IndexQuote, error) {
	cur, err := parseNumber(trID, src.Code, "current", current)
	if err != nil {
		return models.IndexQuote{}, err
	}
	prev, err := parseNumber(trID, src.Code, "previous close", previous)
	if err != nil {
		return models.IndexQuote{}, err
	}
	return models.IndexQuote{
		Label:         src.Label,
		Current:       cur,
		PreviousClose: prev,
		Rate:          rate,
	}, nil
}
