package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"safar/itinerary"
)

// HandbookData is everything printed in a trip handbook.
type HandbookData struct {
	TravelerName string
	Result       *itinerary.Result
	Budget       *BudgetSummary // optional
	GeneratedAt  time.Time
}

// GenerateHandbookPDF renders an optimisation result as a PDF and returns
// the raw bytes.
func GenerateHandbookPDF(data HandbookData) ([]byte, error) {
	res := data.Result
	if res == nil {
		return nil, fmt.Errorf("generate handbook: no result")
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now().UTC()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()

	// ── Header Bar ───────────────────────────────────────────
	pdf.SetFillColor(13, 24, 37)
	pdf.Rect(0, 0, 210, 28, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 8)
	pdf.CellFormat(100, 10, "Safar", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(212, 168, 67)
	pdf.SetXY(20, 18)
	pdf.CellFormat(170, 6, "Itinerary Handbook", "", 1, "L", false, 0, "")

	pdf.SetY(35)
	pdf.SetTextColor(0, 0, 0)

	// ── Safety notice ────────────────────────────────────────
	if !res.SafetyCompliant {
		pdf.SetFillColor(255, 235, 235)
		pdf.SetDrawColor(190, 60, 60)
		pdf.SetTextColor(140, 30, 30)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetLineWidth(0.4)
		y := pdf.GetY()
		pdf.Rect(20, y, 170, 12, "FD")
		pdf.SetXY(23, y+2)
		pdf.MultiCell(164, 4, tr(res.Destination+" is on the high-risk destination list. Check local advisories before travelling."), "", "C", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetDrawColor(0, 0, 0)
		pdf.SetLineWidth(0.2)
		pdf.Ln(6)
	}

	sectionHeader := func(title string) {
		pdf.SetFillColor(13, 24, 37)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(170, 8, "  "+title, "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(55, 7, label, "", 0, "L", false, 0, "")
		pdf.SetTextColor(20, 20, 20)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(115, 7, tr(value), "", 1, "L", false, 0, "")
	}

	// ── Traveler ──────────────────────────────────────────────
	sectionHeader("Traveler")
	name := data.TravelerName
	if name == "" {
		name = "Guest Traveler"
	}
	row("Name", name)
	row("Generated", data.GeneratedAt.Format("02 Jan 2006, 15:04 UTC"))
	pdf.Ln(4)

	// ── Trip Overview ─────────────────────────────────────────
	sectionHeader("Trip Overview")
	row("Destination", res.Destination)
	row("Duration", fmt.Sprintf("%d days", res.NumDays))
	row("Predicted budget", formatINR(res.BudgetPrediction))
	if res.BudgetSource != "" {
		row("Budget source", res.BudgetSource)
	}
	row("Safety", safetyLabel(res.SafetyCompliant))
	pdf.Ln(4)

	// ── Budget ────────────────────────────────────────────────
	if b := data.Budget; b != nil {
		sectionHeader("Budget Breakdown")
		row("Stay", formatINR(b.Breakdown.Stay))
		row("Travel", formatINR(b.Breakdown.Travel))
		row("Food", formatINR(b.Breakdown.Food))
		row("Activities", formatINR(b.Breakdown.Activities))
		row("Per person", formatINR(b.PerPerson))
		row("Per day", formatINR(b.PerDay))
		pdf.Ln(4)
	}

	// ── Candidates ────────────────────────────────────────────
	sectionHeader("Candidate Itineraries")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(240, 240, 240)
	for _, h := range []struct {
		title string
		w     float64
	}{{"#", 10}, {"Strategy", 34}, {"Hours/day", 22}, {"Rest days", 22}, {"Budget", 32}, {"Fatigue", 22}, {"Score", 28}} {
		pdf.CellFormat(h.w, 7, h.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, sc := range res.Candidates {
		c := sc.Candidate
		fill := c.ID() == res.Selected.Candidate.ID()
		pdf.SetFillColor(255, 248, 225)
		pdf.CellFormat(10, 7, fmt.Sprintf("%d", c.ID()), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(34, 7, strategyLabel(c.Strategy()), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(22, 7, fmt.Sprintf("%g", c.DailyActivityHours()), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(22, 7, fmt.Sprintf("%d", c.RestDays()), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(32, 7, formatINR(c.EstimatedBudget()), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(22, 7, fmt.Sprintf("%.2f", c.TravelFatigueScore()), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(28, 7, fmt.Sprintf("%.1f%%", sc.ItineraryScore*100), "1", 1, "C", fill, 0, "")
	}
	pdf.Ln(4)

	// ── Selected ──────────────────────────────────────────────
	sel := res.Selected
	sectionHeader("Selected Itinerary")
	row("Strategy", strategyLabel(sel.Candidate.Strategy()))
	row("Sightseeing density", fmt.Sprintf("%.2f", sel.Candidate.SightseeingDensity()))
	row("Fatigue penalty", fmt.Sprintf("%.3f", sel.Breakdown.FatiguePenalty))
	row("Budget deviation", fmt.Sprintf("%.1f%%", sel.Breakdown.BudgetDeviation*100))
	row("Budget penalty", fmt.Sprintf("%.3f", sel.Breakdown.BudgetPenalty))
	row("Activity bonus", fmt.Sprintf("%.3f", sel.Breakdown.ActivityBalanceBonus))
	row("Rest day bonus", fmt.Sprintf("%.3f", sel.Breakdown.RestDayBonus))

	pdf.SetFillColor(212, 168, 67)
	pdf.SetTextColor(13, 24, 37)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(55, 9, "SCORE", "", 0, "L", true, 0, "")
	pdf.CellFormat(115, 9, fmt.Sprintf("%.1f%%", sel.ItineraryScore*100), "", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	// ── Why ───────────────────────────────────────────────────
	sectionHeader("Why This Itinerary")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(40, 40, 40)
	pdf.MultiCell(170, 5, tr(strings.ReplaceAll(res.Explanation, "✓", "yes")), "", "L", false)

	// ── Footer ────────────────────────────────────────────────
	pdf.SetY(-22)
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.3)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.CellFormat(0, 8, "Generated by Safar - budgets are estimates and subject to change", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("generate handbook: %w", err)
	}
	return buf.Bytes(), nil
}

func strategyLabel(s itinerary.Strategy) string {
	switch s {
	case itinerary.Balanced:
		return "Balanced"
	case itinerary.HighIntensity:
		return "High intensity"
	case itinerary.Relaxed:
		return "Relaxed"
	default:
		return s.String()
	}
}

func safetyLabel(compliant bool) string {
	if compliant {
		return "No advisories"
	}
	return "High-risk destination"
}

// formatINR prints whole rupees with thousands separators, e.g. "INR 35,000".
func formatINR(v float64) string {
	n := int64(v + 0.5)
	if v < 0 {
		n = int64(v - 0.5)
	}
	neg := n < 0
	if neg {
		n = -n
	}

	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if neg {
		return "INR -" + b.String()
	}
	return "INR " + b.String()
}
