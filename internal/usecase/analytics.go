package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/domain"
)

// BrandMetrics is the aggregate picture of one tracked brand over a window.
// Rank figures run over every persisted mention of the brand; the per-query
// best rank only matters to the competitive analyzer. MarketPenetration is
// the percentage of query categories present in the window that contain at
// least one query mentioning the brand.
type BrandMetrics struct {
	Brand              string   `json:"brand"`
	MentionCount       int      `json:"mention_count"`
	MentionRate        float64  `json:"mention_rate"`
	AvgRank            float64  `json:"avg_rank"`
	BestRank           int      `json:"best_rank"`
	WorstRank          int      `json:"worst_rank"`
	ShareOfVoice       float64  `json:"share_of_voice"`
	ModelsSeen         []string `json:"models_seen"`
	RankingConsistency float64  `json:"ranking_consistency"`
	TopPerformerRate   float64  `json:"top_performer_rate"`
	MentionVelocity    float64  `json:"mention_velocity"`
	RankingStability   float64  `json:"ranking_stability"`
	MarketPenetration  float64  `json:"market_penetration"`
}

// TrendPoint is one day of mention volume for a brand.
type TrendPoint struct {
	Date     string `json:"date"`
	Mentions int    `json:"mentions"`
}

// Forecast projects near-term mention volume from observed daily velocity.
type Forecast struct {
	ProjectedMentions float64 `json:"projected_mentions"`
	HorizonDays       int     `json:"horizon_days"`
}

// BrandReport is the full analytics payload for a brand list window.
type BrandReport struct {
	BrandListID  string                  `json:"brand_list_id"`
	Days         int                     `json:"days"`
	TotalQueries int                     `json:"total_queries"`
	Brands       []BrandMetrics          `json:"brands"`
	Trends       map[string][]TrendPoint `json:"trends"`
	Forecasts    map[string]Forecast     `json:"forecasts"`
}

// PairwiseComparison is one directed brand pair in the competitive report.
type PairwiseComparison struct {
	BrandA               string  `json:"brand_a"`
	BrandB               string  `json:"brand_b"`
	Comparisons          int     `json:"comparisons"`
	WinsA                int     `json:"wins_a"`
	WinsB                int     `json:"wins_b"`
	Ties                 int     `json:"ties"`
	WinRateA             float64 `json:"win_rate_a"`
	AvgRankDifference    float64 `json:"avg_rank_difference"`
	CompetitiveIntensity float64 `json:"competitive_intensity"`
}

// CompetitiveReport holds every pair with at least one head-to-head query.
type CompetitiveReport struct {
	BrandListID string               `json:"brand_list_id"`
	Days        int                  `json:"days"`
	Pairs       []PairwiseComparison `json:"pairs"`
}

const forecastHorizonDays = 7

// AnalyticsService computes brand and competitive aggregates over the
// persisted query window.
type AnalyticsService struct {
	repo  domain.AnalyticsRepository
	rules []config.CategoryRule

	// Now supplies the clock for window bounds and mention velocity; tests
	// pin it to a fixed instant.
	Now func() time.Time
}

func NewAnalyticsService(repo domain.AnalyticsRepository, rules []config.CategoryRule) *AnalyticsService {
	if len(rules) == 0 {
		rules = config.DefaultCategoryRules()
	}
	return &AnalyticsService{repo: repo, rules: rules, Now: time.Now}
}

// brandQueryStat is one brand's footprint inside a single query. bestRank
// feeds the competitive analyzer; ranks carries every mention for the
// aggregator.
type brandQueryStat struct {
	bestRank int
	ranks    []int
	models   map[string]struct{}
}

// BrandReport aggregates the window into per-brand metrics, daily trends and
// a velocity-based forecast.
func (s *AnalyticsService) BrandReport(ctx domain.Context, brandListID string, days int) (BrandReport, error) {
	if days <= 0 {
		return BrandReport{}, fmt.Errorf("op=analytics.brand_report: days=%d: %w", days, domain.ErrInvalidArgument)
	}
	window, err := s.loadWindow(ctx, brandListID, days)
	if err != nil {
		return BrandReport{}, err
	}

	report := BrandReport{
		BrandListID:  brandListID,
		Days:         days,
		TotalQueries: len(window),
		Trends:       map[string][]TrendPoint{},
		Forecasts:    map[string]Forecast{},
	}
	if len(window) == 0 {
		return report, nil
	}

	perQuery := perQueryStats(window)
	totalMentions := 0
	categories := make([]string, len(window))
	for i, q := range window {
		categories[i] = s.categorize(q.Query.Prompt)
		for _, st := range perQuery[i] {
			totalMentions += len(st.ranks)
		}
	}

	for _, brand := range distinctBrandNames(perQuery) {
		m := s.brandMetrics(brand, window, perQuery, categories, totalMentions)
		report.Brands = append(report.Brands, m)
		report.Trends[brand] = dailyTrend(brand, window)
		report.Forecasts[brand] = Forecast{
			ProjectedMentions: round2(m.MentionVelocity * forecastHorizonDays),
			HorizonDays:       forecastHorizonDays,
		}
	}

	sort.SliceStable(report.Brands, func(i, j int) bool {
		if report.Brands[i].MentionCount != report.Brands[j].MentionCount {
			return report.Brands[i].MentionCount > report.Brands[j].MentionCount
		}
		return report.Brands[i].Brand < report.Brands[j].Brand
	})
	return report, nil
}

// CompetitiveReport computes pairwise win rates over queries where both
// brands of a pair appear. Pairs that never meet are omitted.
func (s *AnalyticsService) CompetitiveReport(ctx domain.Context, brandListID string, days int) (CompetitiveReport, error) {
	if days <= 0 {
		return CompetitiveReport{}, fmt.Errorf("op=analytics.competitive_report: days=%d: %w", days, domain.ErrInvalidArgument)
	}
	window, err := s.loadWindow(ctx, brandListID, days)
	if err != nil {
		return CompetitiveReport{}, err
	}

	report := CompetitiveReport{BrandListID: brandListID, Days: days}
	perQuery := perQueryStats(window)
	brands := distinctBrandNames(perQuery)

	for i := 0; i < len(brands); i++ {
		for j := i + 1; j < len(brands); j++ {
			pair := comparePair(brands[i], brands[j], perQuery, len(window))
			if pair.Comparisons > 0 {
				report.Pairs = append(report.Pairs, pair)
			}
		}
	}
	return report, nil
}

func (s *AnalyticsService) loadWindow(ctx domain.Context, brandListID string, days int) ([]domain.QueryWithRuns, error) {
	to := s.Now().UTC()
	from := to.AddDate(0, 0, -days)
	window, err := s.repo.QueriesWithMentions(ctx, brandListID, from, to)
	if err != nil {
		return nil, fmt.Errorf("op=analytics.load_window: %w", err)
	}
	return window, nil
}

func (s *AnalyticsService) brandMetrics(brand string, window []domain.QueryWithRuns, perQuery []map[string]*brandQueryStat, categories []string, totalMentions int) BrandMetrics {
	m := BrandMetrics{Brand: brand, BestRank: math.MaxInt}

	var ranks []float64
	topCount := 0
	mentionedQueries := 0
	var firstMention time.Time
	models := map[string]struct{}{}
	windowCategories := map[string]struct{}{}
	brandCategories := map[string]struct{}{}

	for i := range window {
		windowCategories[categories[i]] = struct{}{}
		st, ok := perQuery[i][brand]
		if !ok {
			continue
		}
		mentionedQueries++
		brandCategories[categories[i]] = struct{}{}
		created := window[i].Query.CreatedAt
		if firstMention.IsZero() || created.Before(firstMention) {
			firstMention = created
		}
		for _, r := range st.ranks {
			ranks = append(ranks, float64(r))
			if r == 1 {
				topCount++
			}
			if r < m.BestRank {
				m.BestRank = r
			}
			if r > m.WorstRank {
				m.WorstRank = r
			}
		}
		for model := range st.models {
			models[model] = struct{}{}
		}
	}

	m.MentionCount = len(ranks)
	if m.MentionCount == 0 {
		m.BestRank = 0
		return m
	}

	m.MentionRate = round2(float64(mentionedQueries) / float64(len(window)) * 100)
	m.AvgRank = round2(mean(ranks))
	m.RankingConsistency = round2(stddev(ranks))
	m.TopPerformerRate = round2(float64(topCount) / float64(m.MentionCount) * 100)
	if avg := mean(ranks); avg > 0 {
		m.RankingStability = round2(stddev(ranks) / avg * 100)
	}
	if totalMentions > 0 {
		m.ShareOfVoice = round2(float64(m.MentionCount) / float64(totalMentions) * 100)
	}

	// Velocity counts from the brand's first sighting, not the window size.
	sinceFirst := int(s.Now().UTC().Sub(firstMention).Hours() / 24)
	if sinceFirst < 0 {
		sinceFirst = 0
	}
	m.MentionVelocity = round2(float64(m.MentionCount) / float64(sinceFirst+1))

	m.MarketPenetration = round2(float64(len(brandCategories)) / float64(len(windowCategories)) * 100)

	m.ModelsSeen = make([]string, 0, len(models))
	for model := range models {
		m.ModelsSeen = append(m.ModelsSeen, model)
	}
	sort.Strings(m.ModelsSeen)
	return m
}

// categorize picks the first rule whose keyword appears in the prompt.
func (s *AnalyticsService) categorize(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, rule := range s.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Name
			}
		}
	}
	return config.CategoryGeneral
}

func comparePair(a, b string, perQuery []map[string]*brandQueryStat, totalQueries int) PairwiseComparison {
	pair := PairwiseComparison{BrandA: a, BrandB: b}
	var rankDiffs []float64
	for i := range perQuery {
		sa, oka := perQuery[i][a]
		sb, okb := perQuery[i][b]
		if !oka || !okb {
			continue
		}
		pair.Comparisons++
		rankDiffs = append(rankDiffs, float64(sa.bestRank-sb.bestRank))
		switch {
		case sa.bestRank < sb.bestRank:
			pair.WinsA++
		case sb.bestRank < sa.bestRank:
			pair.WinsB++
		default:
			pair.Ties++
		}
	}
	if pair.Comparisons == 0 {
		return pair
	}
	pair.WinRateA = round2(float64(pair.WinsA) / float64(pair.Comparisons) * 100)
	pair.AvgRankDifference = round2(mean(rankDiffs))
	if totalQueries > 0 {
		pair.CompetitiveIntensity = round2(float64(pair.Comparisons) / float64(totalQueries) * 100)
	}
	return pair
}

// perQueryStats folds every run of every query into a per-query map of brand
// footprints.
func perQueryStats(window []domain.QueryWithRuns) []map[string]*brandQueryStat {
	out := make([]map[string]*brandQueryStat, len(window))
	for i, q := range window {
		stats := map[string]*brandQueryStat{}
		for _, run := range q.Runs {
			for _, mention := range run.Mentions {
				st, ok := stats[mention.BrandName]
				if !ok {
					st = &brandQueryStat{bestRank: mention.Rank, models: map[string]struct{}{}}
					stats[mention.BrandName] = st
				}
				if mention.Rank < st.bestRank {
					st.bestRank = mention.Rank
				}
				st.ranks = append(st.ranks, mention.Rank)
				st.models[run.Run.Model] = struct{}{}
			}
		}
		out[i] = stats
	}
	return out
}

// distinctBrandNames returns every mentioned brand, sorted for deterministic
// report order.
func distinctBrandNames(perQuery []map[string]*brandQueryStat) []string {
	seen := map[string]struct{}{}
	for _, stats := range perQuery {
		for brand := range stats {
			seen[brand] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for brand := range seen {
		out = append(out, brand)
	}
	sort.Strings(out)
	return out
}

func dailyTrend(brand string, window []domain.QueryWithRuns) []TrendPoint {
	byDay := map[string]int{}
	for _, q := range window {
		day := q.Query.CreatedAt.UTC().Format("2006-01-02")
		for _, run := range q.Runs {
			for _, mention := range run.Mentions {
				if mention.BrandName == brand {
					byDay[day]++
				}
			}
		}
	}
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	out := make([]TrendPoint, 0, len(days))
	for _, day := range days {
		out = append(out, TrendPoint{Date: day, Mentions: byDay[day]})
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	acc := 0.0
	for _, x := range xs {
		acc += (x - m) * (x - m)
	}
	return math.Sqrt(acc / float64(len(xs)))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
