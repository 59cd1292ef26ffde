package history

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/tryon/internal/models"
	"gopkg.in/yaml.v3"
)

// ProviderStats aggregates attempts routed to one remote provider
type ProviderStats struct {
	Provider string `json:"provider" yaml:"provider"`
	Attempts int    `json:"attempts" yaml:"attempts"`
	Success  int    `json:"success" yaml:"success"`
	Fallback int    `json:"fallback" yaml:"fallback"`
	// average over successful remote attempts only
	AverageDurationMS int64 `json:"average_duration_ms" yaml:"averagedurationms"`
}

// Summary represents aggregated try-on history
type Summary struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generatedat"`

	Total  int `json:"total" yaml:"total"`
	Remote int `json:"remote" yaml:"remote"`
	Local  int `json:"local" yaml:"local"`

	FallbackRate      float64 `json:"fallback_rate" yaml:"fallbackrate"`
	AverageDurationMS int64   `json:"average_duration_ms" yaml:"averagedurationms"`
	TotalDurationMS   int64   `json:"total_duration_ms" yaml:"totaldurationms"`

	Providers []ProviderStats `json:"providers" yaml:"providers"`
	TopItems  []ItemCount     `json:"top_items" yaml:"topitems"`

	Results []models.TryOnResult `json:"-" yaml:"-"`
}

// ItemCount is how often an item was tried on
type ItemCount struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

const topItemLimit = 5

// Summarize aggregates try-on results
func Summarize(results []models.TryOnResult) *Summary {
	s := &Summary{
		GeneratedAt: time.Now().UTC(),
		Total:       len(results),
		Results:     results,
	}

	byProvider := map[string]*ProviderStats{}
	items := map[string]int{}
	remoteDuration := map[string]int64{}

	for _, r := range results {
		s.TotalDurationMS += r.DurationMS
		if r.ItemName != "" {
			items[r.ItemName]++
		}

		if r.Source == "remote" {
			s.Remote++
		} else {
			s.Local++
		}

		if r.Provider == "" {
			continue
		}
		ps, ok := byProvider[r.Provider]
		if !ok {
			ps = &ProviderStats{Provider: r.Provider}
			byProvider[r.Provider] = ps
		}
		ps.Attempts++
		if r.Source == "remote" {
			ps.Success++
			remoteDuration[r.Provider] += r.DurationMS
		} else {
			ps.Fallback++
		}
	}

	if s.Total > 0 {
		s.FallbackRate = float64(s.Local) / float64(s.Total)
		s.AverageDurationMS = s.TotalDurationMS / int64(s.Total)
	}

	for name, ps := range byProvider {
		if ps.Success > 0 {
			ps.AverageDurationMS = remoteDuration[name] / int64(ps.Success)
		}
		s.Providers = append(s.Providers, *ps)
	}
	sort.Slice(s.Providers, func(i, j int) bool { return s.Providers[i].Provider < s.Providers[j].Provider })

	for name, n := range items {
		s.TopItems = append(s.TopItems, ItemCount{Name: name, Count: n})
	}
	sort.Slice(s.TopItems, func(i, j int) bool {
		if s.TopItems[i].Count != s.TopItems[j].Count {
			return s.TopItems[i].Count > s.TopItems[j].Count
		}
		return s.TopItems[i].Name < s.TopItems[j].Name
	})
	if len(s.TopItems) > topItemLimit {
		s.TopItems = s.TopItems[:topItemLimit]
	}

	return s
}

// WriteReport renders the summary as text, json, yaml or csv
func (s *Summary) WriteReport(w io.Writer, format string) error {
	switch format {
	case "text", "":
		return s.writeText(w)
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(s)
	case "yaml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "csv":
		return s.writeCSV(w)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func (s *Summary) writeText(w io.Writer) error {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "TRY-ON HISTORY SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Generated: %s\n", s.GeneratedAt.Format(time.DateTime))
	fmt.Fprintf(w, "Results:   %d\n", s.Total)
	if s.Total == 0 {
		return nil
	}
	fmt.Fprintf(w, "Remote:    %d (%.1f%%)\n", s.Remote, float64(s.Remote)/float64(s.Total)*100)
	fmt.Fprintf(w, "Fallback:  %d (%.1f%%)\n", s.Local, s.FallbackRate*100)
	fmt.Fprintf(w, "Average:   %dms\n", s.AverageDurationMS)

	if len(s.Providers) > 0 {
		fmt.Fprintln(w, "\nPROVIDERS")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, p := range s.Providers {
			fmt.Fprintf(w, "%-10s attempts=%d success=%d fallback=%d avg=%dms\n",
				p.Provider, p.Attempts, p.Success, p.Fallback, p.AverageDurationMS)
		}
	}

	if len(s.TopItems) > 0 {
		fmt.Fprintln(w, "\nMOST TRIED")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, it := range s.TopItems {
			fmt.Fprintf(w, "%3d  %s\n", it.Count, it.Name)
		}
	}
	return nil
}

func (s *Summary) writeCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	header := []string{"ID", "Created", "Item", "Mode", "Source", "Provider", "Width", "Height", "Duration MS", "Error"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, r := range s.Results {
		row := []string{
			r.ID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.ItemName,
			r.Mode,
			r.Source,
			r.Provider,
			strconv.Itoa(r.Width),
			strconv.Itoa(r.Height),
			strconv.FormatInt(r.DurationMS, 10),
			r.Error,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
