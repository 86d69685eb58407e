package googleads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Row is one campaign/day/segment combination from the searchStream report.
type Row struct {
	CampaignID   string
	CampaignName string
	Date         string
	Device       string
	Country      string
	AgeRange     string
	Gender       string
	Impressions  int64
	Clicks       int64
	CostMicros   int64
	Conversions  float64
}

type rawResult struct {
	Campaign struct {
		ID   int64Value `json:"id"`
		Name string     `json:"name"`
	} `json:"campaign"`
	Segments struct {
		Date             string `json:"date"`
		Device           string `json:"device"`
		GeoTargetCountry string `json:"geoTargetCountry"`
		AgeRange         struct {
			AgeRangeType string `json:"ageRangeType"`
		} `json:"ageRange"`
		Gender struct {
			GenderType string `json:"genderType"`
		} `json:"gender"`
	} `json:"segments"`
	Metrics struct {
		Impressions int64Value `json:"impressions"`
		Clicks      int64Value `json:"clicks"`
		CostMicros  int64Value `json:"costMicros"`
		Conversions float64    `json:"conversions"`
	} `json:"metrics"`
}

type rawBatch struct {
	Results []rawResult `json:"results"`
}

func (r rawResult) row() Row {
	return Row{
		CampaignID:   strconv.FormatInt(int64(r.Campaign.ID), 10),
		CampaignName: r.Campaign.Name,
		Date:         r.Segments.Date,
		Device:       r.Segments.Device,
		Country:      r.Segments.GeoTargetCountry,
		AgeRange:     r.Segments.AgeRange.AgeRangeType,
		Gender:       r.Segments.Gender.GenderType,
		Impressions:  int64(r.Metrics.Impressions),
		Clicks:       int64(r.Metrics.Clicks),
		CostMicros:   int64(r.Metrics.CostMicros),
		Conversions:  r.Metrics.Conversions,
	}
}

// CampaignSegmentsQuery selects daily campaign metrics segmented by device, country, age and gender.
func CampaignSegmentsQuery(from, to time.Time) string {
	return fmt.Sprintf(`SELECT campaign.id, campaign.name, segments.date, segments.device, segments.geo_target_country, `+
		`segments.age_range.age_range_type, segments.gender.gender_type, metrics.impressions, metrics.clicks, `+
		`metrics.cost_micros, metrics.conversions FROM campaign `+
		`WHERE segments.date BETWEEN '%s' AND '%s' AND campaign.status != 'REMOVED'`,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
}

// StreamCampaignSegments runs the segments report and hands each streamed chunk to fn.
// Decoding stops at the first error returned by fn.
func (s *Session) StreamCampaignSegments(ctx context.Context, customerID string, from, to time.Time, fn func([]Row) error) error {
	cid := NormalizeCustomerID(customerID)
	if cid == "" {
		return fmt.Errorf("customer id is required")
	}
	payload, err := json.Marshal(map[string]string{"query": CampaignSegmentsQuery(from, to)})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/customers/%s/googleAds:searchStream",
		strings.TrimRight(s.client.APIBaseURL, "/"), s.client.APIVersion, cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("developer-token", s.client.DeveloperToken)
	if s.client.LoginCustomerID != "" {
		req.Header.Set("login-customer-id", s.client.LoginCustomerID)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readError(resp)
	}

	dec := json.NewDecoder(resp.Body)
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("google ads stream: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("google ads stream: unexpected token %v", tok)
	}
	for dec.More() {
		var batch rawBatch
		if err := dec.Decode(&batch); err != nil {
			return fmt.Errorf("google ads stream: %w", err)
		}
		rows := make([]Row, 0, len(batch.Results))
		for _, r := range batch.Results {
			rows = append(rows, r.row())
		}
		if err := fn(rows); err != nil {
			return err
		}
	}
	return nil
}
